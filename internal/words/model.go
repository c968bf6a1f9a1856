package words

import (
	"context"
	"fmt"

	"github.com/kiliankoe/alias/internal/ai"
	"github.com/rs/zerolog/log"
)

const systemPrompt = "You pick secret words for a party game where one player describes a word and teammates guess it. Reply with exactly one English noun in lowercase and nothing else."

var tierHints = map[string]string{
	Easy:   "a very common, concrete word a child would know, at most six letters",
	Medium: "an everyday word of six to nine letters",
	Hard:   "a less common or abstract word of nine or more letters",
}

// Model asks a language model for words and falls back to another Source when
// the model fails or answers with something that is not a single word.
type Model struct {
	Provider ai.Provider
	Model    string
	Fallback Source
}

func (m *Model) Word(ctx context.Context, tier string) (string, error) {
	hint, ok := tierHints[tier]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}
	text, err := m.Provider.Complete(ctx, ai.Request{
		Model:       m.Model,
		System:      systemPrompt,
		Prompt:      "Give me " + hint + ".",
		Temperature: 1.0,
		MaxTokens:   8,
	})
	if err == nil {
		if w := Normalize(text); w != "" {
			return w, nil
		}
		log.Warn().Str("answer", text).Msg("model word rejected")
	} else {
		log.Warn().Err(err).Str("tier", tier).Msg("model word failed")
	}
	if m.Fallback == nil {
		if err == nil {
			err = ai.ErrNoAnswer
		}
		return "", err
	}
	return m.Fallback.Word(ctx, tier)
}
