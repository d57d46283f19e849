package view

import "github.com/aliskhannn/image-tracker/internal/model"

// View is the presentation side of a session. Calls arrive on the
// session loop and must not block for long.
type View interface {
	// ShowJob switches to the results section for job id.
	ShowJob(id string)
	// ShowStatus replaces the inline status line.
	ShowStatus(msg string)
	// ShowVariant appends one retrieved variant to the results.
	ShowVariant(v model.RetrievedVariant)
	// ResultsDone is called once every variant of a completed job was handled.
	ResultsDone()
	// Alert is a blocking, user-visible notification.
	Alert(msg string)
	// Reset returns to the initial upload/search screen.
	Reset()
}

type multi []View

// Multi fans every call out to views, in order.
func Multi(views ...View) View {
	return multi(views)
}

func (m multi) ShowJob(id string) {
	for _, v := range m {
		v.ShowJob(id)
	}
}

func (m multi) ShowStatus(msg string) {
	for _, v := range m {
		v.ShowStatus(msg)
	}
}

func (m multi) ShowVariant(rv model.RetrievedVariant) {
	for _, v := range m {
		v.ShowVariant(rv)
	}
}

func (m multi) ResultsDone() {
	for _, v := range m {
		v.ResultsDone()
	}
}

func (m multi) Alert(msg string) {
	for _, v := range m {
		v.Alert(msg)
	}
}

func (m multi) Reset() {
	for _, v := range m {
		v.Reset()
	}
}
