package game

import "errors"

var (
	ErrGameNotFound       = errors.New("game not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidTeam        = errors.New("invalid team")
	ErrPlayerNotInTeam    = errors.New("player is not on a team")
	ErrTurnsExhausted     = errors.New("no eligible describer left")
	ErrTimerActive        = errors.New("timer already running for game")
	ErrInvalidStatus      = errors.New("invalid game status for action")
	ErrNegativePoints     = errors.New("points must not be negative")
	ErrLedgerClosed       = errors.New("score ledger is not open for game")
	ErrNothingToReconcile = errors.New("game already reconciled")
	ErrNoActiveTurn       = errors.New("no active turn")
	ErrNoWord             = errors.New("no word generated yet")
	ErrInvalidSettings    = errors.New("invalid game settings")
	ErrNotEnoughPlayers   = errors.New("each team needs at least one player")
)

// IsNotFound reports whether err means a game or user does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGameNotFound) || errors.Is(err, ErrUserNotFound)
}
