package events

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-tracker/internal/model"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

type message struct {
	key   string
	value []byte
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []message
	fail bool
}

func (s *fakeSender) SendWithRetry(_ context.Context, _ retry.Strategy, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return errors.New("broker unavailable")
	}
	s.msgs = append(s.msgs, message{key: string(key), value: value})

	return nil
}

func (s *fakeSender) events(t *testing.T) []Event {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, 0, len(s.msgs))
	for _, m := range s.msgs {
		var e Event
		require.NoError(t, json.Unmarshal(m.value, &e))
		assert.Equal(t, "session-1", m.key)
		out = append(out, e)
	}

	return out
}

func runPublisher(t *testing.T, p *Publisher) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go p.Run(ctx, &wg)

	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
}

func TestPublisher_PublishesInOrder(t *testing.T) {
	s := &fakeSender{}
	p := New(s, retry.Strategy{Attempts: 1}, "session-1", 0)
	fixed := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	runPublisher(t, p)

	p.ShowJob("abc123")
	p.ShowStatus("processing...")
	p.ShowVariant(model.RetrievedVariant{Kind: model.VariantThumbnail, Handle: model.DisplayHandle{URL: "http://x/handles/1"}})
	p.ResultsDone()
	p.Reset()

	require.Eventually(t, func() bool { return len(s.events(t)) == 5 }, time.Second, 5*time.Millisecond)

	got := s.events(t)
	types := make([]string, 0, len(got))
	for _, e := range got {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{TypeJob, TypeStatus, TypeVariant, TypeResultsDone, TypeReset}, types)

	assert.Equal(t, "abc123", got[1].ImageID)
	assert.Equal(t, "processing...", got[1].Message)
	assert.Equal(t, model.VariantThumbnail, got[2].Variant)
	assert.Equal(t, "http://x/handles/1", got[2].URL)
	assert.True(t, fixed.Equal(got[0].At))
}

func TestPublisher_DropsWhenBufferFull(t *testing.T) {
	s := &fakeSender{}
	p := New(s, retry.Strategy{}, "session-1", 1)

	// Run is not started, so the second event has nowhere to go.
	p.Alert("first")
	p.Alert("second")

	assert.Len(t, p.events, 1)
}

func TestPublisher_SendFailureDoesNotStopRun(t *testing.T) {
	s := &fakeSender{fail: true}
	p := New(s, retry.Strategy{}, "session-1", 0)
	runPublisher(t, p)

	p.Alert("lost")

	require.Eventually(t, func() bool { return len(p.events) == 0 }, time.Second, 5*time.Millisecond)

	s.mu.Lock()
	s.fail = false
	s.mu.Unlock()

	p.Alert("delivered")
	require.Eventually(t, func() bool { return len(s.events(t)) == 1 }, time.Second, 5*time.Millisecond)
}
