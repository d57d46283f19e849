package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_AdoptIncrementsGeneration(t *testing.T) {
	var tr Tracker

	first := tr.Adopt("abc123")
	second := tr.Adopt("def456")

	assert.Equal(t, JobReference{ID: "abc123", Generation: 1}, first)
	assert.Equal(t, JobReference{ID: "def456", Generation: 2}, second)
	assert.False(t, tr.IsCurrent(first))
	assert.True(t, tr.IsCurrent(second))
}

func TestTracker_ClearKeepsCounter(t *testing.T) {
	var tr Tracker

	ref := tr.Adopt("abc123")
	tr.Clear()

	_, ok := tr.Current()
	require.False(t, ok)
	assert.False(t, tr.IsCurrent(ref))

	// Re-adopting the same id must not revive the old reference.
	again := tr.Adopt("abc123")
	assert.Equal(t, uint64(2), again.Generation)
	assert.False(t, tr.IsCurrent(ref))
}

func TestParseState(t *testing.T) {
	tests := []struct {
		in       string
		want     State
		terminal bool
	}{
		{"pending", StatePending, false},
		{"processing", StatePending, false},
		{"", StatePending, false},
		{"completed", StateCompleted, true},
		{"failed", StateFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseState(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.terminal, got.Terminal())
		})
	}
}

func TestVariantSetOrder(t *testing.T) {
	assert.Equal(t,
		[]VariantKind{"original", "resized", "thumbnail", "watermarked"},
		VariantSet(),
	)
}
