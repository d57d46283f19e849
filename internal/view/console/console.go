package console

import (
	"image"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-tracker/internal/model"
)

// composer renders retrieved variants into one image.
type composer interface {
	Compose(variants []model.RetrievedVariant) (image.Image, error)
}

// View reports the session through the application log and, when an
// output path is set, writes a contact sheet of every finished job.
type View struct {
	composer composer
	save     func(path string, img image.Image) error
	output   string

	jobID    string
	variants []model.RetrievedVariant
}

// New creates a console View. An empty output disables the contact sheet.
func New(c composer, save func(path string, img image.Image) error, output string) *View {
	return &View{composer: c, save: save, output: output}
}

// ShowJob starts collecting variants for job id.
func (v *View) ShowJob(id string) {
	v.jobID = id
	v.variants = nil

	zlog.Logger.Info().Str("id", id).Msg("tracking image")
}

// ShowStatus logs the status line.
func (v *View) ShowStatus(msg string) {
	zlog.Logger.Info().Str("id", v.jobID).Msg(msg)
}

// ShowVariant logs and collects a retrieved variant.
func (v *View) ShowVariant(rv model.RetrievedVariant) {
	v.variants = append(v.variants, rv)

	zlog.Logger.Info().
		Str("id", v.jobID).
		Str("variant", string(rv.Kind)).
		Str("url", rv.Handle.URL).
		Int("width", rv.Width).
		Int("height", rv.Height).
		Msg("variant ready")
}

// ResultsDone logs the result count and writes the contact sheet.
func (v *View) ResultsDone() {
	zlog.Logger.Info().Str("id", v.jobID).Int("variants", len(v.variants)).Msg("results ready")

	if v.output == "" || len(v.variants) == 0 {
		return
	}

	img, err := v.composer.Compose(v.variants)
	if err != nil {
		zlog.Logger.Err(err).Str("id", v.jobID).Msg("failed to compose contact sheet")
		return
	}

	if err := v.save(v.output, img); err != nil {
		zlog.Logger.Err(err).Str("path", v.output).Msg("failed to write contact sheet")
		return
	}

	zlog.Logger.Info().Str("path", v.output).Msg("contact sheet written")
}

// Alert logs msg as a warning.
func (v *View) Alert(msg string) {
	zlog.Logger.Warn().Str("id", v.jobID).Msg(msg)
}

// Reset drops the collected variants.
func (v *View) Reset() {
	v.jobID = ""
	v.variants = nil
}
