// Package ai holds the chat-completion clients used to draw secret words from
// a language model.
package ai

import (
	"context"
	"errors"
)

var (
	ErrMissingKey = errors.New("missing api key")
	ErrNoAnswer   = errors.New("model returned no answer")
)

// Request is one system+user exchange. Zero Temperature and MaxTokens leave
// the backend defaults in place.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}
