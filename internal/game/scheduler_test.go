package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hookCall struct {
	Kind  string
	Value int
}

type recordingHooks struct {
	mu    sync.Mutex
	calls []hookCall
}

func (h *recordingHooks) add(kind string, v int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, hookCall{kind, v})
}

func (h *recordingHooks) Tick(_ context.Context, _ string, remaining int) { h.add("tick", remaining) }
func (h *recordingHooks) NextRound(_ context.Context, _ string, round int) {
	h.add("round", round)
}
func (h *recordingHooks) Finish(ctx context.Context, _ string) {
	if ctx.Err() == nil {
		h.add("finish", 0)
	}
}

func (h *recordingHooks) snapshot() []hookCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]hookCall{}, h.calls...)
}

func TestSchedulerRunsRoundsThenFinishes(t *testing.T) {
	clk := newFakeClock()
	s := NewScheduler(clk.Ticker)
	h := &recordingHooks{}

	task, err := s.Start("g", 3, 2, h)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		clk.tick(t)
	}
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}

	assert.Equal(t, []hookCall{
		{"tick", 2}, {"tick", 1}, {"tick", 0}, {"round", 2},
		{"tick", 2}, {"tick", 1}, {"tick", 0}, {"finish", 0},
	}, h.snapshot())
	assert.False(t, s.Active("g"))
	assert.True(t, clk.idle())
}

func TestSchedulerOneTaskPerGame(t *testing.T) {
	s := NewScheduler(newFakeClock().Ticker)
	defer s.StopAll()

	_, err := s.Start("g", 5, 1, &recordingHooks{})
	require.NoError(t, err)
	_, err = s.Start("g", 5, 1, &recordingHooks{})
	assert.ErrorIs(t, err, ErrTimerActive)
	_, err = s.Start("other", 5, 1, &recordingHooks{})
	assert.NoError(t, err)

	_, err = s.Start("bad", 0, 1, &recordingHooks{})
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestSchedulerStop(t *testing.T) {
	clk := newFakeClock()
	s := NewScheduler(clk.Ticker)
	h := &recordingHooks{}

	task, err := s.Start("g", 10, 1, h)
	require.NoError(t, err)
	clk.tick(t)
	require.Eventually(t, func() bool { return len(h.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	s.Stop("g")
	s.Stop("g")
	task.Cancel()
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("task did not stop")
	}
	assert.True(t, clk.idle())
	assert.Equal(t, []hookCall{{"tick", 9}}, h.snapshot())

	_, err = s.Start("g", 10, 1, h)
	assert.NoError(t, err)
	s.StopAll()
	assert.False(t, s.Active("g"))
}
