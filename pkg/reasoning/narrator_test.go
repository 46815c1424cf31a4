package reasoning

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type updateRecorder struct {
	mu      sync.Mutex
	updates []string
}

func (r *updateRecorder) record(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, s)
}

func (r *updateRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return ""
	}
	return r.updates[len(r.updates)-1]
}

func (r *updateRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func TestNarratorTicksWhileReasoning(t *testing.T) {
	rec := &updateRecorder{}
	n := NewNarrator()
	n.Start(context.Background(), rec.record)
	defer n.Stop()

	time.Sleep(350 * time.Millisecond)
	assert.GreaterOrEqual(t, rec.count(), 3, "ticker should push updates while reasoning")
	assert.Contains(t, rec.last(), "…")
}

func TestNarratorRollingWindow(t *testing.T) {
	rec := &updateRecorder{}
	n := NewNarrator()
	n.Start(context.Background(), rec.record)

	for i := 1; i <= 6; i++ {
		n.AddStep(fmt.Sprintf("step %d", i), "", false)
	}

	live := n.Render()
	// Live view shows only the most recent four steps.
	assert.NotContains(t, live, "step 1")
	assert.NotContains(t, live, "step 2")
	for i := 3; i <= 6; i++ {
		assert.Contains(t, live, fmt.Sprintf("step %d", i))
	}

	// The complete view restores the full history.
	n.Complete()
	full := n.Render()
	for i := 1; i <= 6; i++ {
		assert.Contains(t, full, fmt.Sprintf("step %d", i))
	}
}

func TestNarratorDetailedOnlySkipsWindow(t *testing.T) {
	n := NewNarrator()
	n.Start(context.Background(), func(string) {})

	n.AddStep("visible", "", false)
	n.AddStep("history only", "", true)

	assert.NotContains(t, n.Render(), "history only")

	n.Complete()
	assert.Contains(t, n.Render(), "history only")
}

func TestNarratorStopCollapses(t *testing.T) {
	rec := &updateRecorder{}
	n := NewNarrator()
	n.Start(context.Background(), rec.record)
	n.AddStep("searched notes", "vault_search", false)

	n.Stop()
	assert.Contains(t, n.Render(), "[!reasoning]-", "collapsed marker")
	assert.Contains(t, n.Render(), "searched notes")
	assert.False(t, n.HandledAbort())

	// Idempotent.
	n.Stop()
}

func TestNarratorStopBeforeFirstTick(t *testing.T) {
	rec := &updateRecorder{}
	n := NewNarrator()
	n.Start(context.Background(), rec.record)

	// Stop immediately, before the ticker ever fires; it must return rather
	// than wait on the goroutine.
	stopped := make(chan struct{})
	go func() {
		n.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return before the first tick")
	}
	assert.Contains(t, n.Render(), "[!reasoning]-")
}

func TestNarratorCancellation(t *testing.T) {
	rec := &updateRecorder{}
	ctx, cancel := context.WithCancel(context.Background())

	n := NewNarrator()
	n.Start(ctx, rec.record)
	n.AddStep("halfway", "", false)

	cancel()

	require.Eventually(t, func() bool {
		return strings.Contains(rec.last(), "interrupted")
	}, time.Second, 10*time.Millisecond)
	assert.True(t, n.HandledAbort())
	assert.Contains(t, rec.last(), "halfway")
}

func TestNarratorAppendAnswer(t *testing.T) {
	rec := &updateRecorder{}
	n := NewNarrator()
	n.Start(context.Background(), rec.record)
	defer n.Stop()

	n.AppendAnswer("The answer ")
	n.AppendAnswer("is 42.")

	assert.True(t, strings.HasSuffix(rec.last(), "The answer is 42."))
}
