package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/kiliankoe/alias/internal/game"
	"github.com/rs/zerolog/log"
)

type bindMessages map[string]map[string]string

func bindJSON(c *gin.Context, req any, messages bindMessages, fallback string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": resolveBindError(err, messages, fallback)})
		return false
	}
	return true
}

func resolveBindError(err error, messages bindMessages, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, verr := range verrs {
			if fieldMsgs, ok := messages[verr.Field()]; ok {
				if msg, ok := fieldMsgs[verr.Tag()]; ok {
					return msg
				}
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return "invalid request"
}

// fail writes the response for an engine error.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
	case errors.Is(err, game.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, game.ErrInvalidSettings),
		errors.Is(err, game.ErrInvalidPlayer),
		errors.Is(err, game.ErrInvalidTeam),
		errors.Is(err, game.ErrPlayerNotInTeam),
		errors.Is(err, game.ErrNegativePoints):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, game.ErrInvalidStatus),
		errors.Is(err, game.ErrTimerActive),
		errors.Is(err, game.ErrNotEnoughPlayers),
		errors.Is(err, game.ErrTurnsExhausted),
		errors.Is(err, game.ErrNoActiveTurn),
		errors.Is(err, game.ErrNoWord),
		errors.Is(err, game.ErrLedgerClosed),
		errors.Is(err, game.ErrNothingToReconcile):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
