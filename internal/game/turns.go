package game

import (
	"math/rand"
	"slices"
	"sync"
)

// TurnMachine picks which team plays and who describes. Describers rotate
// through a team before anyone describes twice; once a team has no fresh
// describer left the game is over.
type TurnMachine struct {
	mu    sync.Mutex
	rng   *rand.Rand
	games map[string]*turnBook
}

type turnBook struct {
	first     TeamID
	described map[TeamID]map[string]struct{}
	current   *Turn
}

func NewTurnMachine(src rand.Source) *TurnMachine {
	return &TurnMachine{rng: rand.New(src), games: make(map[string]*turnBook)}
}

// Reset forgets the describer history of a game. Called when a game starts.
func (m *TurnMachine) Reset(gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[gameID] = newTurnBook()
}

// Discard drops all turn state of a finished game.
func (m *TurnMachine) Discard(gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, gameID)
}

func newTurnBook() *turnBook {
	return &turnBook{described: map[TeamID]map[string]struct{}{Team1: {}, Team2: {}}}
}

// StartTurn chooses the next team and describer for s and increments
// s.CurrentTurn. It returns ErrTurnsExhausted when the team on turn has no
// member left who has not described yet; s is left unchanged then.
func (m *TurnMachine) StartTurn(s *Session, round int) (Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	book, ok := m.games[s.ID]
	if !ok {
		book = newTurnBook()
		m.games[s.ID] = book
	}

	if s.CurrentTurn == 0 || book.first == "" {
		book.first = Team1
		if m.rng.Intn(2) == 1 {
			book.first = Team2
		}
	}
	team := book.first
	if s.CurrentTurn%2 == 1 {
		team = team.Other()
	}

	members := s.Team(team).Players
	var eligible []string
	for _, p := range members {
		if _, done := book.described[team][p]; !done {
			eligible = append(eligible, p)
		}
	}
	if len(eligible) == 0 {
		book.current = nil
		return Turn{Team: team}, ErrTurnsExhausted
	}

	describer := eligible[m.rng.Intn(len(eligible))]
	book.described[team][describer] = struct{}{}
	s.CurrentTurn++

	guessers := slices.DeleteFunc(slices.Clone(members), func(p string) bool { return p == describer })
	t := Turn{Number: s.CurrentTurn, Round: round, Team: team, Describer: describer, Guessers: guessers}
	book.current = &t
	return t, nil
}

// Current returns the turn in progress.
func (m *TurnMachine) Current(gameID string) (Turn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.games[gameID]
	if !ok || book.current == nil {
		return Turn{}, false
	}
	t := *book.current
	t.Guessers = slices.Clone(t.Guessers)
	return t, true
}

// SetWord records the word being described in the current turn.
func (m *TurnMachine) SetWord(gameID, word string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if book, ok := m.games[gameID]; ok && book.current != nil {
		book.current.Word = word
	}
}

// Described returns who has described for team so far.
func (m *TurnMachine) Described(gameID string, team TeamID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.games[gameID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(book.described[team]))
	for p := range book.described[team] {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
