package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type event struct {
	To      string
	Name    string
	Payload any
}

// recorder is a Gateway that remembers everything it was asked to send.
type recorder struct {
	mu     sync.Mutex
	events []event
}

type emitFunc func(string, any)

func (f emitFunc) Emit(name string, payload any) { f(name, payload) }

func (r *recorder) ToGame(id string) Emitter {
	return emitFunc(func(name string, p any) { r.add("game:"+id, name, p) })
}

func (r *recorder) ToSocket(id string) Emitter {
	return emitFunc(func(name string, p any) { r.add("socket:"+id, name, p) })
}

func (r *recorder) add(to, name string, p any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{To: to, Name: name, Payload: p})
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) names(to string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.To == to {
			out = append(out, e.Name)
		}
	}
	return out
}

func (r *recorder) payloads(to, name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.To == to && e.Name == name {
			out = append(out, e.Payload)
		}
	}
	return out
}

// fakeClock hands out one unbuffered tick channel; every send completes only
// once the countdown loop is back waiting, so all hooks of the previous tick
// have run.
type fakeClock struct{ ch chan time.Time }

func newFakeClock() *fakeClock { return &fakeClock{ch: make(chan time.Time)} }

func (f *fakeClock) Ticker(time.Duration) (<-chan time.Time, func()) { return f.ch, func() {} }

func (f *fakeClock) tick(t *testing.T) {
	t.Helper()
	select {
	case f.ch <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("tick was not consumed")
	}
}

// idle reports whether nobody reads ticks anymore.
func (f *fakeClock) idle() bool {
	select {
	case f.ch <- time.Now():
		return false
	case <-time.After(50 * time.Millisecond):
		return true
	}
}

type queueWords struct {
	mu    sync.Mutex
	words []string
	i     int
}

func (q *queueWords) Word(context.Context, string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	w := q.words[q.i%len(q.words)]
	q.i++
	return w, nil
}

func newTestEngine(t *testing.T, repo Repository) (*Engine, *recorder, *fakeClock) {
	t.Helper()
	rec := &recorder{}
	clk := newFakeClock()
	e := NewEngine(Options{
		Repo:    repo,
		Gateway: rec,
		Words:   &queueWords{words: []string{"elephant", "giraffe", "volcano", "lantern", "compass"}},
		Ticker:  clk.Ticker,
		Seed:    7,
		Logger:  zerolog.Nop(),
	})
	t.Cleanup(e.Close)
	return e, rec, clk
}

// setupGame creates a game with fixed teams and binds socket "sock-<name>"
// for every player.
func setupGame(t *testing.T, e *Engine, secs, rounds int, team1, team2 []string) *Session {
	t.Helper()
	ctx := context.Background()
	s, err := e.CreateGame(ctx, GameSettings{Name: "test", Difficulty: DifficultyEasy, RoundSeconds: secs, TotalRounds: rounds})
	require.NoError(t, err)
	for _, p := range team1 {
		_, err := e.AddUser(ctx, s.ID, Team1, p)
		require.NoError(t, err)
	}
	for _, p := range team2 {
		_, err := e.AddUser(ctx, s.ID, Team2, p)
		require.NoError(t, err)
	}
	for _, p := range append(append([]string{}, team1...), team2...) {
		_, err := e.Join(ctx, s.ID, p, "sock-"+p)
		require.NoError(t, err)
	}
	return s
}
