package ollama

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

func TestComplete(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"volcano","done":true}`))
	}))
	defer srv.Close()

	text, err := New(srv.URL).Complete(context.Background(), ai.Request{Model: "llama3", Prompt: "p", Temperature: 0.9})
	require.NoError(t, err)
	assert.Equal(t, "volcano", text)
	assert.False(t, got.Stream)
	assert.Equal(t, 0.9, got.Options["temperature"])
}

func TestCompleteEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"   "}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Complete(context.Background(), ai.Request{Prompt: "p"})
	assert.ErrorIs(t, err, ai.ErrNoAnswer)
}
