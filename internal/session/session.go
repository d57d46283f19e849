package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-tracker/internal/model"
	"github.com/aliskhannn/image-tracker/internal/poller"
	"github.com/aliskhannn/image-tracker/internal/remote"
	"github.com/aliskhannn/image-tracker/internal/view"
)

var (
	ErrUploadFailure  = errors.New("upload failed")
	ErrLookupNotFound = errors.New("no image with this id")
	ErrLookupFailure  = errors.New("lookup failed")
	ErrDeleteFailure  = errors.New("delete failed")
	ErrNotTracking    = errors.New("no image is being tracked")
	ErrClosed         = errors.New("session closed")
	ErrEmptyID        = poller.ErrEmptyID
)

// Status lines shown while a job is tracked.
const (
	msgUploaded   = "image uploaded, processing..."
	msgProcessing = "processing..."
	msgCompleted  = "processing completed"
	msgFailed     = "processing failed: "
	msgDeleted    = "image deleted"
)

// Phase is the session-level state.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseTracking Phase = "tracking"
)

// State describes the session at one point in time.
type State struct {
	Phase Phase              `json:"phase"`
	Job   model.JobReference `json:"job"`
}

// service is the remote image processing service.
type service interface {
	Upload(ctx context.Context, filename string, src io.Reader) (string, error)
	Status(ctx context.Context, id string) (model.StatusSnapshot, error)
	Delete(ctx context.Context, id string) error
}

// resultFetcher retrieves the variants of a completed job.
type resultFetcher interface {
	FetchAll(ctx context.Context, id string) iter.Seq[model.RetrievedVariant]
}

// handleReleaser frees display handles that are no longer shown.
type handleReleaser interface {
	Release(ctx context.Context, h model.DisplayHandle) error
}

// runner is the single logical thread all session state lives on.
type runner interface {
	Post(fn func())
	After(d time.Duration, fn func()) (stop func() bool)
	Call(ctx context.Context, fn func()) error
}

// Session tracks at most one image processing job at a time.
//
// Exported methods may be called from any goroutine except the runner's own.
// Network calls happen on the caller's goroutine; every state transition
// runs on the runner.
type Session struct {
	ctx     context.Context
	svc     service
	fetcher resultFetcher
	handles handleReleaser
	view    view.View
	loop    runner
	poller  *poller.Poller

	releasing sync.WaitGroup

	// Everything below is confined to the runner.
	tracker     model.Tracker
	task        *poller.Task
	fetchedGen  uint64
	fetchCancel context.CancelFunc
	displayed   []model.DisplayHandle
	closed      bool
}

// New creates a Session. ctx bounds all background work (polling, fetching,
// handle release); interval is the fixed polling delay.
func New(
	ctx context.Context,
	svc service,
	f resultFetcher,
	handles handleReleaser,
	v view.View,
	loop runner,
	interval time.Duration,
) *Session {
	s := &Session{
		ctx:     ctx,
		svc:     svc,
		fetcher: f,
		handles: handles,
		view:    v,
		loop:    loop,
	}
	s.poller = poller.New(svc, loop, &s.tracker, interval)

	return s
}

// Submit uploads an image and starts tracking the job it creates.
// On failure the session is left as it was.
func (s *Session) Submit(ctx context.Context, filename string, src io.Reader) error {
	id, err := s.svc.Upload(ctx, filename, src)
	if err != nil {
		zlog.Logger.Err(err).Str("filename", filename).Msg("failed to upload image")
		s.alert(ctx, "upload error: "+err.Error())
		return fmt.Errorf("%w: %w", ErrUploadFailure, err)
	}

	zlog.Logger.Info().Str("id", id).Str("filename", filename).Msg("image uploaded")

	return s.commit(ctx, func() error { return s.adopt(id, msgUploaded) })
}

// Lookup starts tracking an existing job if the service knows id.
// On failure the session is left as it was.
func (s *Session) Lookup(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrEmptyID
	}

	if _, err := s.svc.Status(ctx, id); err != nil {
		if errors.Is(err, remote.ErrImageNotFound) {
			zlog.Logger.Warn().Str("id", id).Msg("image not found")
			s.alert(ctx, ErrLookupNotFound.Error())
			return ErrLookupNotFound
		}

		zlog.Logger.Err(err).Str("id", id).Msg("failed to look up image")
		s.alert(ctx, "lookup error: "+err.Error())
		return fmt.Errorf("%w: %w", ErrLookupFailure, err)
	}

	return s.commit(ctx, func() error { return s.adopt(id, "") })
}

// Delete removes the tracked job from the service and returns to idle.
// If the request fails, tracking continues untouched.
func (s *Session) Delete(ctx context.Context) error {
	var (
		ref      model.JobReference
		tracking bool
	)
	if err := s.loop.Call(ctx, func() { ref, tracking = s.tracker.Current() }); err != nil {
		return err
	}
	if !tracking {
		return ErrNotTracking
	}

	if err := s.svc.Delete(ctx, ref.ID); err != nil {
		zlog.Logger.Err(err).Str("id", ref.ID).Msg("failed to delete image")
		s.alert(ctx, "delete error: "+err.Error())
		return fmt.Errorf("%w: %w", ErrDeleteFailure, err)
	}

	zlog.Logger.Info().Str("id", ref.ID).Msg("image deleted")

	return s.commit(ctx, func() error {
		s.view.Alert(msgDeleted)
		// A newer job may have been adopted while the request was out.
		if s.tracker.IsCurrent(ref) {
			s.reset()
		}
		return nil
	})
}

// Reset stops tracking without contacting the service. Calling it while
// idle is a no-op apart from resetting the view.
func (s *Session) Reset(ctx context.Context) error {
	return s.loop.Call(ctx, s.reset)
}

// Close resets the session and waits until every display handle it held
// has been released, or until ctx is done. Afterwards Submit and Lookup
// fail with ErrClosed.
func (s *Session) Close(ctx context.Context) error {
	err := s.loop.Call(ctx, func() {
		s.reset()
		s.closed = true
	})
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		s.releasing.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current phase and job reference.
func (s *Session) State(ctx context.Context) (State, error) {
	var st State

	err := s.loop.Call(ctx, func() {
		ref, ok := s.tracker.Current()
		if !ok {
			st = State{Phase: PhaseIdle}
			return
		}
		st = State{Phase: PhaseTracking, Job: ref}
	})

	return st, err
}

// commit applies the local half of an operation whose remote half has
// already succeeded. It waits for the loop regardless of ctx, so the
// returned error always matches the resulting state.
func (s *Session) commit(ctx context.Context, fn func() error) error {
	var err error
	if callErr := s.loop.Call(context.WithoutCancel(ctx), func() { err = fn() }); callErr != nil {
		return callErr
	}

	return err
}

func (s *Session) alert(ctx context.Context, msg string) {
	if err := s.loop.Call(ctx, func() { s.view.Alert(msg) }); err != nil {
		zlog.Logger.Err(err).Msg("failed to deliver alert")
	}
}

// adopt replaces whatever is tracked with a new reference for id and starts polling it.
func (s *Session) adopt(id, status string) error {
	if s.closed {
		return ErrClosed
	}

	s.reset()

	ref := s.tracker.Adopt(id)
	s.view.ShowJob(id)
	if status != "" {
		s.view.ShowStatus(status)
	}

	task, err := s.poller.Start(s.ctx, ref, func(snap model.StatusSnapshot) { s.onStatus(ref, snap) })
	if err != nil {
		zlog.Logger.Err(err).Str("id", id).Msg("failed to start polling")
		return nil
	}
	s.task = task

	return nil
}

func (s *Session) onStatus(ref model.JobReference, snap model.StatusSnapshot) {
	switch snap.State {
	case model.StateCompleted:
		s.view.ShowStatus(msgCompleted)
		s.showResults(ref)
	case model.StateFailed:
		s.view.ShowStatus(msgFailed + snap.Message)
	default:
		if snap.Fault {
			s.view.ShowStatus(snap.Message)
			return
		}
		s.view.ShowStatus(msgProcessing)
	}
}

// showResults fetches the variants of ref, once per generation. Variants are
// fetched off the loop and rendered on it as they arrive, in set order.
// A variant that arrives after ref was superseded is released by the
// fetching goroutine, which Close waits for.
func (s *Session) showResults(ref model.JobReference) {
	if s.fetchedGen == ref.Generation {
		return
	}
	s.fetchedGen = ref.Generation

	ctx, cancel := context.WithCancel(s.ctx)
	s.fetchCancel = cancel
	seq := s.fetcher.FetchAll(ctx, ref.ID)

	callCtx := context.WithoutCancel(s.ctx)

	s.releasing.Add(1)
	go func() {
		defer s.releasing.Done()

		for v := range seq {
			var shown bool
			if err := s.loop.Call(callCtx, func() { shown = s.showVariant(ref, v) }); err != nil || !shown {
				s.release([]model.DisplayHandle{v.Handle})
			}
		}

		s.loop.Post(func() {
			if s.tracker.IsCurrent(ref) {
				s.view.ResultsDone()
			}
		})
	}()
}

// showVariant renders v if ref is still tracked and reports whether it did.
func (s *Session) showVariant(ref model.JobReference, v model.RetrievedVariant) bool {
	if !s.tracker.IsCurrent(ref) {
		return false
	}

	s.displayed = append(s.displayed, v.Handle)
	s.view.ShowVariant(v)

	return true
}

// reset is the teardown shared by Reset, Delete and adopt.
func (s *Session) reset() {
	if s.task != nil {
		s.task.Cancel()
		s.task = nil
	}
	if s.fetchCancel != nil {
		s.fetchCancel()
		s.fetchCancel = nil
	}

	if len(s.displayed) > 0 {
		s.releaseAsync(s.displayed)
		s.displayed = nil
	}

	s.tracker.Clear()
	s.view.Reset()
}

// releaseAsync frees handles off the loop, as releasing may involve network calls.
// It runs on the loop, never after Close, so the WaitGroup is not reused while waited on.
func (s *Session) releaseAsync(handles []model.DisplayHandle) {
	s.releasing.Add(1)
	go func() {
		defer s.releasing.Done()
		s.release(handles)
	}()
}

func (s *Session) release(handles []model.DisplayHandle) {
	// Handles must be freed even while shutting down.
	ctx := context.WithoutCancel(s.ctx)

	for _, h := range handles {
		if err := s.handles.Release(ctx, h); err != nil {
			zlog.Logger.Err(err).Str("handle", h.Key).Msg("failed to release display handle")
		}
	}
}
