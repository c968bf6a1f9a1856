package game

import (
	"context"
	"fmt"
	"sync"
)

// wordAttempts bounds how often WordBook asks the source again to avoid a
// repeat within one game.
const wordAttempts = 5

// WordBook remembers the current word of each game and which words a game
// has already used.
type WordBook struct {
	source WordSource

	mu      sync.Mutex
	current map[string]string
	used    map[string]map[string]struct{}
}

func NewWordBook(src WordSource) *WordBook {
	return &WordBook{source: src, current: make(map[string]string), used: make(map[string]map[string]struct{})}
}

// Generate draws a new word for the game and makes it current.
func (b *WordBook) Generate(ctx context.Context, gameID string, d Difficulty) (string, error) {
	var word string
	for i := 0; i < wordAttempts; i++ {
		w, err := b.source.Word(ctx, string(d))
		if err != nil {
			return "", fmt.Errorf("generate word: %w", err)
		}
		word = w
		if !b.seen(gameID, w) {
			break
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.current[gameID] = word
	if b.used[gameID] == nil {
		b.used[gameID] = make(map[string]struct{})
	}
	b.used[gameID][word] = struct{}{}
	return word, nil
}

func (b *WordBook) seen(gameID, w string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.used[gameID][w]
	return ok
}

func (b *WordBook) Current(gameID string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.current[gameID]
	return w, ok
}

func (b *WordBook) Forget(gameID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.current, gameID)
	delete(b.used, gameID)
}
