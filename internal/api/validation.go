package api

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/kiliankoe/alias/internal/game"
)

const (
	maxGameNameLength = 40
	maxUsernameLength = 24
	maxRoundSeconds   = 600
	maxTotalRounds    = 20
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("gamename", func(fl validator.FieldLevel) bool {
			_, err := validateText("name", fl.Field().String(), maxGameNameLength)
			return err == nil
		})
		_ = engine.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			_, err := validateText("username", fl.Field().String(), maxUsernameLength)
			return err == nil
		})
		_ = engine.RegisterValidation("team", func(fl validator.FieldLevel) bool {
			return game.TeamID(fl.Field().String()).Valid()
		})
		_ = engine.RegisterValidation("difficulty", func(fl validator.FieldLevel) bool {
			d := fl.Field().String()
			return d == "" || game.Difficulty(d).Valid()
		})
	})
}

func validateText(label, text string, maxLen int) (string, error) {
	trimmed := strings.Join(strings.Fields(text), " ")
	if trimmed == "" {
		return "", fmt.Errorf("%s is required", label)
	}
	if len([]rune(trimmed)) > maxLen {
		return "", fmt.Errorf("%s must be %d characters or fewer", label, maxLen)
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", errors.New(label + " contains unsupported characters")
		}
	}
	return trimmed, nil
}
