package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kiliankoe/alias/internal/ai"
)

const defaultHost = "http://localhost:11434"

// Client uses the non-streaming /api/generate endpoint of a local Ollama.
type Client struct {
	Host string
	http *http.Client
}

func New(host string) *Client {
	if host == "" {
		host = defaultHost
	}
	return &Client{Host: strings.TrimRight(host, "/"), http: &http.Client{Timeout: 30 * time.Second}}
}

type generateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

func (c *Client) Complete(ctx context.Context, r ai.Request) (string, error) {
	body := generateRequest{Model: r.Model, System: r.System, Prompt: r.Prompt}
	if r.Temperature > 0 || r.MaxTokens > 0 {
		body.Options = map[string]any{}
		if r.Temperature > 0 {
			body.Options["temperature"] = r.Temperature
		}
		if r.MaxTokens > 0 {
			body.Options["num_predict"] = r.MaxTokens
		}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Host+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("ollama status %d", resp.StatusCode)
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	text := strings.TrimSpace(out.Response)
	if text == "" {
		return "", ai.ErrNoAnswer
	}
	return text, nil
}
