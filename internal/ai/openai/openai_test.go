package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiliankoe/alias/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteSendsChatRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Lighthouse \n"}}]}`))
	}))
	defer srv.Close()

	c := New("sk-test", srv.URL+"/")
	text, err := c.Complete(context.Background(), ai.Request{Model: "gpt-4o-mini", System: "sys", Prompt: "word please", MaxTokens: 5})
	require.NoError(t, err)
	assert.Equal(t, "Lighthouse", text)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "word please", got.Messages[1].Content)
	assert.Equal(t, 5, got.MaxTokens)
}

func TestCompleteErrors(t *testing.T) {
	_, err := New("", "").Complete(context.Background(), ai.Request{Prompt: "x"})
	assert.ErrorIs(t, err, ai.ErrMissingKey)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer empty.Close()
	_, err = New("k", empty.URL).Complete(context.Background(), ai.Request{Prompt: "x"})
	assert.ErrorIs(t, err, ai.ErrNoAnswer)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer failing.Close()
	_, err = New("k", failing.URL).Complete(context.Background(), ai.Request{Prompt: "x"})
	assert.EqualError(t, err, "openai status 429")
}
