package game

import (
	"context"
	"slices"
	"sync"
)

// ChatLog buffers the chat of running games. Messages reach the repository
// only when Flush is called at game end.
type ChatLog struct {
	repo ChatRepository

	mu   sync.Mutex
	live map[string][]ChatMessage
}

func NewChatLog(repo ChatRepository) *ChatLog {
	return &ChatLog{repo: repo, live: make(map[string][]ChatMessage)}
}

func (c *ChatLog) Open(gameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.live[gameID]; !ok {
		c.live[gameID] = []ChatMessage{}
	}
}

func (c *ChatLog) Append(gameID string, msg ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live[gameID] = append(c.live[gameID], msg)
}

// History returns the buffered chat of a running game, or the stored
// transcript of any other game.
func (c *ChatLog) History(ctx context.Context, gameID string) ([]ChatMessage, error) {
	c.mu.Lock()
	msgs, ok := c.live[gameID]
	msgs = slices.Clone(msgs)
	c.mu.Unlock()
	if ok {
		return msgs, nil
	}
	return c.repo.ChatHistory(ctx, gameID)
}

// Pending reports whether the game still has a chat buffer to flush.
func (c *ChatLog) Pending(gameID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.live[gameID]
	return ok
}

// Flush stores the buffered chat of a game and drops the buffer. On error the
// buffer is kept.
func (c *ChatLog) Flush(ctx context.Context, gameID string) error {
	c.mu.Lock()
	msgs, ok := c.live[gameID]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if len(msgs) > 0 {
		if err := c.repo.SaveChat(ctx, gameID, msgs); err != nil {
			return err
		}
	}
	c.mu.Lock()
	delete(c.live, gameID)
	c.mu.Unlock()
	return nil
}
