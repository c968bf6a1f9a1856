package game

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a Repository kept in process memory. It is what the server
// runs on when no database is configured, and what the tests use.
type MemoryStore struct {
	mu    sync.RWMutex
	games map[string]*Session
	users map[string]User
	chats map[string][]ChatMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[string]*Session),
		users: make(map[string]User),
		chats: make(map[string][]ChatMessage),
	}
}

func (m *MemoryStore) CreateGame(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) GetGame(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) GamesByStatus(_ context.Context, status Status) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.games {
		if s.Status == status {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) SaveGame(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[s.ID]; !ok {
		return ErrGameNotFound
	}
	m.games[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *MemoryStore) SaveChat(_ context.Context, gameID string, msgs []ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[gameID] = append(m.chats[gameID], msgs...)
	return nil
}

func (m *MemoryStore) ChatHistory(_ context.Context, gameID string) ([]ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.chats[gameID]), nil
}

func (m *MemoryStore) FinishGame(_ context.Context, s *Session, results []PlayerResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[s.ID]; !ok {
		return ErrGameNotFound
	}
	m.games[s.ID] = s.Clone()
	for _, r := range results {
		u, ok := m.users[r.Username]
		if !ok {
			u = User{Username: r.Username, CreatedAt: time.Now().UTC()}
		}
		u.Stats.GamesPlayed++
		u.Stats.WordsGuessed += r.WordsGuessed
		if r.Won {
			u.Stats.GamesWon++
		}
		m.users[r.Username] = u
	}
	return nil
}
