package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-tracker/internal/model"
)

// DefaultInterval is the fixed delay between two status queries.
const DefaultInterval = 2 * time.Second

// ErrEmptyID is returned when polling is requested for a reference without an id.
var ErrEmptyID = errors.New("empty job id")

// statusClient queries the processing status of a job.
type statusClient interface {
	Status(ctx context.Context, id string) (model.StatusSnapshot, error)
}

// scheduler runs callbacks on the session's loop.
type scheduler interface {
	Post(fn func())
	After(d time.Duration, fn func()) (stop func() bool)
}

// generations tells whether a reference is still the one being tracked.
type generations interface {
	IsCurrent(ref model.JobReference) bool
}

// Poller starts status polling tasks for job references.
// Polling runs at a fixed cadence with no backoff and no jitter.
type Poller struct {
	client   statusClient
	sched    scheduler
	gens     generations
	interval time.Duration
}

// New creates a Poller. A non-positive interval falls back to DefaultInterval.
func New(client statusClient, sched scheduler, gens generations, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Poller{
		client:   client,
		sched:    sched,
		gens:     gens,
		interval: interval,
	}
}

// Task is one running polling loop. It ends on its own once a terminal
// status is delivered, or when it is canceled.
type Task struct {
	p        *Poller
	ref      model.JobReference
	onUpdate func(model.StatusSnapshot)

	ctx       context.Context
	cancelCtx context.CancelFunc
	cancelled atomic.Bool
	finished  atomic.Bool

	mu   sync.Mutex
	stop func() bool
}

// Start begins polling ref and issues the first query right away.
// onUpdate runs on the scheduler once per completed query, terminal one included.
// Start must be called on the scheduler's loop.
func (p *Poller) Start(ctx context.Context, ref model.JobReference, onUpdate func(model.StatusSnapshot)) (*Task, error) {
	if ref.ID == "" {
		return nil, ErrEmptyID
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task{
		p:         p,
		ref:       ref,
		onUpdate:  onUpdate,
		ctx:       taskCtx,
		cancelCtx: cancel,
	}

	zlog.Logger.Info().
		Str("id", ref.ID).
		Uint64("generation", ref.Generation).
		Msg("polling started")

	t.poll()

	return t, nil
}

// Ref returns the reference this task polls.
func (t *Task) Ref() model.JobReference {
	return t.ref
}

// Finished reports whether a terminal status has been delivered.
func (t *Task) Finished() bool {
	return t.finished.Load()
}

// Cancel stops the task. It is safe to call more than once.
// A query already in flight is aborted and its result is discarded.
func (t *Task) Cancel() {
	if !t.cancelled.CompareAndSwap(false, true) {
		return
	}

	t.cancelCtx()

	t.mu.Lock()
	stop := t.stop
	t.stop = nil
	t.mu.Unlock()

	if stop != nil {
		stop()
	}

	zlog.Logger.Info().
		Str("id", t.ref.ID).
		Uint64("generation", t.ref.Generation).
		Msg("polling canceled")
}

func (t *Task) poll() {
	if t.cancelled.Load() {
		return
	}

	go func() {
		snap, err := t.p.client.Status(t.ctx, t.ref.ID)
		t.p.sched.Post(func() { t.deliver(snap, err) })
	}()
}

// deliver runs on the loop with the outcome of one query.
func (t *Task) deliver(snap model.StatusSnapshot, err error) {
	if t.cancelled.Load() {
		return
	}
	if !t.p.gens.IsCurrent(t.ref) {
		zlog.Logger.Warn().
			Str("id", t.ref.ID).
			Uint64("generation", t.ref.Generation).
			Msg("discarding status for stale reference")
		t.cancelCtx()
		return
	}

	if err != nil {
		zlog.Logger.Err(err).Str("id", t.ref.ID).Msg("status check failed")
		snap = model.StatusSnapshot{
			State:   model.StatePending,
			Message: fmt.Sprintf("status check error: %v", err),
			Fault:   true,
		}
	}

	if snap.State.Terminal() {
		t.finished.Store(true)
		t.cancelCtx()
	}

	t.onUpdate(snap)

	// onUpdate may have canceled the task.
	if snap.State.Terminal() || t.cancelled.Load() {
		return
	}

	t.mu.Lock()
	t.stop = t.p.sched.After(t.p.interval, t.poll)
	t.mu.Unlock()
}
