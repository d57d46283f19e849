package board

import (
	"sync"

	"github.com/aliskhannn/image-tracker/internal/model"
)

// Variant is a displayed variant as seen by API clients.
type Variant struct {
	Kind   model.VariantKind `json:"kind"`
	URL    string            `json:"url"`
	Width  int               `json:"width,omitempty"`
	Height int               `json:"height,omitempty"`
}

// Snapshot is the state of the page at one point in time.
type Snapshot struct {
	ImageID     string    `json:"image_id,omitempty"`
	Status      string    `json:"status,omitempty"`
	Variants    []Variant `json:"variants"`
	ResultsDone bool      `json:"results_done"` // delete action is offered
	LastAlert   string    `json:"last_alert,omitempty"`
}

// Board records what the page would show so it can be served over HTTP.
// It is safe for concurrent use.
type Board struct {
	mu    sync.RWMutex
	state Snapshot
}

// New creates an empty Board.
func New() *Board {
	return &Board{}
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := b.state
	s.Variants = append([]Variant{}, b.state.Variants...)

	return s
}

// ShowJob switches the page to job id and clears its results.
func (b *Board) ShowJob(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.ImageID = id
	b.state.Variants = nil
	b.state.ResultsDone = false
}

// ShowStatus sets the inline status line.
func (b *Board) ShowStatus(msg string) {
	b.mu.Lock()
	b.state.Status = msg
	b.mu.Unlock()
}

// ShowVariant appends a variant to the results.
func (b *Board) ShowVariant(v model.RetrievedVariant) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state.Variants = append(b.state.Variants, Variant{
		Kind:   v.Kind,
		URL:    v.Handle.URL,
		Width:  v.Width,
		Height: v.Height,
	})
}

// ResultsDone marks the results as complete.
func (b *Board) ResultsDone() {
	b.mu.Lock()
	b.state.ResultsDone = true
	b.mu.Unlock()
}

// Alert records msg as the last alert.
func (b *Board) Alert(msg string) {
	b.mu.Lock()
	b.state.LastAlert = msg
	b.mu.Unlock()
}

// Reset clears everything but the last alert, which usually explains the reset.
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = Snapshot{LastAlert: b.state.LastAlert}
}
