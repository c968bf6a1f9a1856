package game

import "context"

// GameRepository persists sessions. Implementations return copies; callers
// may mutate what they get back.
type GameRepository interface {
	CreateGame(ctx context.Context, s *Session) error
	GetGame(ctx context.Context, id string) (*Session, error)
	GamesByStatus(ctx context.Context, status Status) ([]*Session, error)
	SaveGame(ctx context.Context, s *Session) error
}

type UserRepository interface {
	GetUser(ctx context.Context, username string) (User, error)
}

type ChatRepository interface {
	SaveChat(ctx context.Context, gameID string, msgs []ChatMessage) error
	ChatHistory(ctx context.Context, gameID string) ([]ChatMessage, error)
}

// Finisher stores a finished game and the stats it produced as one unit.
// Either both land or neither does.
type Finisher interface {
	FinishGame(ctx context.Context, s *Session, results []PlayerResult) error
}

type Repository interface {
	GameRepository
	UserRepository
	ChatRepository
	Finisher
}

// WordSource yields a secret word for a difficulty tier.
type WordSource interface {
	Word(ctx context.Context, tier string) (string, error)
}
