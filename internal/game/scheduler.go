package game

import (
	"context"
	"sync"
	"time"
)

// TickerFunc returns a channel that fires every d and a function that stops it.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func RealTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// RoundHooks is what a running countdown calls into. ctx is cancelled once the
// task is stopped; hooks that only got to run after that must do nothing.
type RoundHooks interface {
	Tick(ctx context.Context, gameID string, remaining int)
	NextRound(ctx context.Context, gameID string, round int)
	Finish(ctx context.Context, gameID string)
}

// Task is the handle of one game's countdown.
type Task struct {
	gameID string
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

// Cancel stops the countdown. Safe to call more than once.
func (t *Task) Cancel() { t.once.Do(t.cancel) }

// Done is closed when the countdown goroutine has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Scheduler runs at most one countdown per game.
type Scheduler struct {
	ticker   TickerFunc
	interval time.Duration

	mu    sync.Mutex
	tasks map[string]*Task
}

func NewScheduler(ticker TickerFunc) *Scheduler {
	if ticker == nil {
		ticker = RealTicker
	}
	return &Scheduler{ticker: ticker, interval: time.Second, tasks: make(map[string]*Task)}
}

// Start begins the countdown of a game: roundSeconds ticks per round for
// totalRounds rounds.
func (s *Scheduler) Start(gameID string, roundSeconds, totalRounds int, hooks RoundHooks) (*Task, error) {
	if roundSeconds <= 0 || totalRounds <= 0 {
		return nil, ErrInvalidSettings
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[gameID]; ok {
		return nil, ErrTimerActive
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{gameID: gameID, ctx: ctx, cancel: cancel, done: make(chan struct{})}
	s.tasks[gameID] = t

	ticks, stop := s.ticker(s.interval)
	go s.run(t, ticks, stop, roundSeconds, totalRounds, hooks)
	return t, nil
}

// Stop cancels the countdown of a game, if any.
func (s *Scheduler) Stop(gameID string) {
	s.mu.Lock()
	t, ok := s.tasks[gameID]
	delete(s.tasks, gameID)
	s.mu.Unlock()
	if ok {
		t.Cancel()
	}
}

// StopAll cancels every countdown. Used on shutdown.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = make(map[string]*Task)
	s.mu.Unlock()
	for _, t := range tasks {
		t.Cancel()
	}
}

// Active reports whether a game has a running countdown.
func (s *Scheduler) Active(gameID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[gameID]
	return ok
}

func (s *Scheduler) release(t *Task) {
	s.mu.Lock()
	if s.tasks[t.gameID] == t {
		delete(s.tasks, t.gameID)
	}
	s.mu.Unlock()
	t.Cancel()
}

func (s *Scheduler) run(t *Task, ticks <-chan time.Time, stop func(), roundSeconds, totalRounds int, hooks RoundHooks) {
	defer close(t.done)
	defer stop()

	remaining := roundSeconds
	roundsLeft := totalRounds
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticks:
		}
		if t.ctx.Err() != nil {
			return
		}

		remaining--
		hooks.Tick(t.ctx, t.gameID, remaining)
		if remaining > 0 {
			continue
		}

		roundsLeft--
		if roundsLeft > 0 {
			remaining = roundSeconds
			hooks.NextRound(t.ctx, t.gameID, totalRounds-roundsLeft+1)
			continue
		}

		s.release(t)
		hooks.Finish(context.WithoutCancel(t.ctx), t.gameID)
		return
	}
}
