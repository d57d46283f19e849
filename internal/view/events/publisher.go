package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-tracker/internal/model"
)

// Event types.
const (
	TypeJob         = "job"
	TypeStatus      = "status"
	TypeVariant     = "variant"
	TypeResultsDone = "results_done"
	TypeAlert       = "alert"
	TypeReset       = "reset"
)

// Event is one session notification as published to Kafka.
type Event struct {
	SessionID string            `json:"session_id"`
	Type      string            `json:"type"`
	ImageID   string            `json:"image_id,omitempty"`
	Message   string            `json:"message,omitempty"`
	Variant   model.VariantKind `json:"variant,omitempty"`
	URL       string            `json:"url,omitempty"`
	At        time.Time         `json:"at"`
}

// sender delivers one keyed message to the broker.
type sender interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key, value []byte) error
}

// Publisher is a view that turns session notifications into Kafka messages.
// View calls only enqueue; Run does the sending, so a slow broker never
// stalls the session loop. Messages are keyed by session id.
type Publisher struct {
	sender    sender
	strategy  retry.Strategy
	sessionID string
	events    chan Event
	now       func() time.Time

	jobID string
}

// New creates a Publisher that buffers up to buffer events.
func New(s sender, strategy retry.Strategy, sessionID string, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 64
	}

	return &Publisher{
		sender:    s,
		strategy:  strategy,
		sessionID: sessionID,
		events:    make(chan Event, buffer),
		now:       time.Now,
	}
}

// Run sends queued events until ctx is canceled.
func (p *Publisher) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	zlog.Logger.Info().Str("session", p.sessionID).Msg("starting event publisher")

	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("shutdown signal received, stopping event publisher")
			return
		case e := <-p.events:
			if err := p.publish(ctx, e); err != nil {
				zlog.Logger.Err(err).Str("type", e.Type).Msg("failed to publish event")
			}
		}
	}
}

func (p *Publisher) publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.sender.SendWithRetry(ctx, p.strategy, []byte(e.SessionID), data); err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}

	return nil
}

func (p *Publisher) enqueue(e Event) {
	e.SessionID = p.sessionID
	e.ImageID = p.jobID
	e.At = p.now()

	select {
	case p.events <- e:
	default:
		zlog.Logger.Warn().Str("type", e.Type).Msg("event buffer full, dropping event")
	}
}

// ShowJob publishes a job event and tags later events with id.
func (p *Publisher) ShowJob(id string) {
	p.jobID = id
	p.enqueue(Event{Type: TypeJob})
}

// ShowStatus publishes a status event.
func (p *Publisher) ShowStatus(msg string) {
	p.enqueue(Event{Type: TypeStatus, Message: msg})
}

// ShowVariant publishes a variant event carrying the display URL.
func (p *Publisher) ShowVariant(v model.RetrievedVariant) {
	p.enqueue(Event{Type: TypeVariant, Variant: v.Kind, URL: v.Handle.URL})
}

// ResultsDone publishes a results_done event.
func (p *Publisher) ResultsDone() {
	p.enqueue(Event{Type: TypeResultsDone})
}

// Alert publishes an alert event.
func (p *Publisher) Alert(msg string) {
	p.enqueue(Event{Type: TypeAlert, Message: msg})
}

// Reset publishes a reset event.
func (p *Publisher) Reset() {
	p.enqueue(Event{Type: TypeReset})
	p.jobID = ""
}
