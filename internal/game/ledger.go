package game

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// LedgerStore holds the transient per-game scores. A game's entry exists from
// Open until Close; Add on a game without an entry fails.
type LedgerStore interface {
	Open(gameID string)
	Add(gameID, userID string, points int) (int, error)
	Snapshot(gameID string) (map[string]int, bool)
	Close(gameID string)
}

type MemoryLedger struct {
	mu    sync.Mutex
	games map[string]map[string]int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{games: make(map[string]map[string]int)}
}

func (l *MemoryLedger) Open(gameID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.games[gameID]; !ok {
		l.games[gameID] = make(map[string]int)
	}
}

func (l *MemoryLedger) Add(gameID, userID string, points int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	scores, ok := l.games[gameID]
	if !ok {
		return 0, ErrLedgerClosed
	}
	scores[userID] += points
	return scores[userID], nil
}

func (l *MemoryLedger) Snapshot(gameID string) (map[string]int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	scores, ok := l.games[gameID]
	if !ok {
		return nil, false
	}
	out := make(map[string]int, len(scores))
	for k, v := range scores {
		out[k] = v
	}
	return out, true
}

func (l *MemoryLedger) Close(gameID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.games, gameID)
}

// Outcome is the result of reconciling one game.
type Outcome struct {
	Scores  TeamScores     `json:"scores"`
	Winner  TeamID         `json:"winner,omitempty"`
	Players map[string]int `json:"players"`
}

// ScoreLedger scores players during a game and settles the scores into the
// repository when the game ends.
type ScoreLedger struct {
	store   LedgerStore
	games   GameRepository
	finish  Finisher
	gateway Gateway
	log     zerolog.Logger

	settled keyedMutex
}

func NewScoreLedger(store LedgerStore, repo Repository, gw Gateway, log zerolog.Logger) *ScoreLedger {
	return &ScoreLedger{
		store:   store,
		games:   repo,
		finish:  repo,
		gateway: gw,
		log:     log,
	}
}

// Open starts scoring for a game.
func (l *ScoreLedger) Open(gameID string) { l.store.Open(gameID) }

// Add credits points to a player and broadcasts the new total.
func (l *ScoreLedger) Add(gameID, userID string, points int) (int, error) {
	if points < 0 {
		return 0, ErrNegativePoints
	}
	total, err := l.store.Add(gameID, userID, points)
	if err != nil {
		return 0, err
	}
	l.gateway.ToGame(gameID).Emit(EventScoreUpdated, map[string]any{
		"userId": userID,
		"points": points,
		"total":  total,
	})
	return total, nil
}

// Points returns the transient points of every player in a running game.
func (l *ScoreLedger) Points(gameID string) map[string]int {
	scores, _ := l.store.Snapshot(gameID)
	return scores
}

// CurrentTeamScores returns frozen scores for finished games and live sums
// for everything else.
func (l *ScoreLedger) CurrentTeamScores(ctx context.Context, gameID string) (TeamScores, error) {
	s, err := l.games.GetGame(ctx, gameID)
	if err != nil {
		return TeamScores{}, err
	}
	if s.Status == StatusFinished {
		return TeamScores{Team1: s.Team1.Score, Team2: s.Team2.Score}, nil
	}
	scores, _ := l.store.Snapshot(gameID)
	return sumTeams(s, scores), nil
}

func sumTeams(s *Session, scores map[string]int) TeamScores {
	var ts TeamScores
	for _, p := range s.Team1.Players {
		ts.Team1 += scores[p]
	}
	for _, p := range s.Team2.Players {
		ts.Team2 += scores[p]
	}
	return ts
}

// Reconcile writes final team scores, the finished status and every
// participant's stats in one repository call. The ledger entry is removed
// only after that call succeeds, so a failed attempt can be retried. A game
// without a ledger entry returns ErrNothingToReconcile.
//
// On success s is updated to the persisted state.
func (l *ScoreLedger) Reconcile(ctx context.Context, s *Session) (Outcome, error) {
	unlock := l.settled.lock(s.ID)
	defer unlock()

	scores, ok := l.store.Snapshot(s.ID)
	if !ok {
		return Outcome{}, ErrNothingToReconcile
	}

	final := s.Clone()
	if err := final.Advance(StatusFinished); err != nil {
		return Outcome{}, err
	}
	totals := sumTeams(final, scores)
	final.Team1.Score = totals.Team1
	final.Team2.Score = totals.Team2
	winner, hasWinner := totals.Winner()

	results := make([]PlayerResult, 0, len(final.Team1.Players)+len(final.Team2.Players))
	players := make(map[string]int, cap(results))
	for _, id := range []TeamID{Team1, Team2} {
		for _, p := range final.Team(id).Players {
			results = append(results, PlayerResult{
				Username:     p,
				WordsGuessed: scores[p],
				Won:          hasWinner && id == winner,
			})
			players[p] = scores[p]
		}
	}

	if err := l.finish.FinishGame(ctx, final, results); err != nil {
		return Outcome{}, fmt.Errorf("reconcile game %s: %w", s.ID, err)
	}
	l.store.Close(s.ID)
	*s = *final

	l.log.Info().Str("game", s.ID).Int("team1", totals.Team1).Int("team2", totals.Team2).Str("winner", string(winner)).Msg("game reconciled")
	return Outcome{Scores: totals, Winner: winner, Players: players}, nil
}
