package game

import "sync"

// rooms keeps the live copies of games being played, one mutex per game
// and the socket each player is connected with.
type rooms struct {
	mu      sync.RWMutex
	live    map[string]*Session
	locks   keyedMutex
	sockets map[string]map[string]string // gameID -> player -> socketID
}

func newRooms() *rooms {
	return &rooms{
		live:    make(map[string]*Session),
		sockets: make(map[string]map[string]string),
	}
}

// lock serializes work on one game and returns the unlock func.
func (r *rooms) lock(gameID string) func() { return r.locks.lock(gameID) }

// keyedMutex hands out one mutex per key. An entry lives only while someone
// holds or waits for it. The zero value is ready to use.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*refMutex)
	}
	m, ok := k.entries[key]
	if !ok {
		m = &refMutex{}
		k.entries[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

// len reports how many keys are held or waited on.
func (k *keyedMutex) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (r *rooms) get(gameID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.live[gameID]
	return s, ok
}

func (r *rooms) put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[s.ID] = s
}

func (r *rooms) drop(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, gameID)
	delete(r.sockets, gameID)
}

func (r *rooms) bindSocket(gameID, player, socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sockets[gameID] == nil {
		r.sockets[gameID] = make(map[string]string)
	}
	r.sockets[gameID][player] = socketID
}

func (r *rooms) socketOf(gameID, player string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.sockets[gameID][player]
	return sid, ok
}

// unbindSocket forgets a closed connection wherever it was bound.
func (r *rooms) unbindSocket(socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for gameID, players := range r.sockets {
		for p, sid := range players {
			if sid == socketID {
				delete(players, p)
			}
		}
		if len(players) == 0 {
			delete(r.sockets, gameID)
		}
	}
}
