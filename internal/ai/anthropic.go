package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const anthropicURL = "https://api.anthropic.com/v1/messages"

// anthropicClient is the Generator backed by the Anthropic Messages API.
type anthropicClient struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewAnthropicClient returns a Generator that calls the Anthropic API.
//   - apiKey: your ANTHROPIC_API_KEY
//   - model:  e.g. "claude-sonnet-4-5"
func NewAnthropicClient(apiKey, model string) Generator {
	return &anthropicClient{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}
}

// ─── ANTHROPIC API SHAPES ─────────────────────────────────────────────────────

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *anthropicError `json:"error"`
}

// anthropicEvent covers the stream events we act on: content_block_delta,
// message_stop and error. Everything else (message_start, ping, ...) is
// ignored.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *anthropicError `json:"error"`
}

// ─── IMPLEMENTATION ───────────────────────────────────────────────────────────

func (c *anthropicClient) request(p Prompt, stream bool) anthropicRequest {
	return anthropicRequest{
		Model:       c.model,
		MaxTokens:   p.maxTokens(),
		System:      p.System,
		Temperature: p.Temperature,
		Stream:      stream,
		Messages: []anthropicMessage{
			{Role: "user", Content: p.User},
		},
	}
}

// Generate calls the Messages API and returns the text of the first text
// content block.
func (c *anthropicClient) Generate(ctx context.Context, p Prompt) (string, error) {
	resp, err := c.do(ctx, c.request(p, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB cap
	if err != nil {
		return "", fmt.Errorf("anthropic: read response body: %w", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("anthropic: unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("anthropic: API error %s: %s", parsed.Error.Type, parsed.Error.Message)
	}

	for _, block := range parsed.Content {
		if block.Type == "text" {
			if text := strings.TrimSpace(block.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", fmt.Errorf("anthropic: %w", ErrEmptyResponse)
}

// Stream opens a streaming message. Text arrives in content_block_delta
// events of delta type text_delta.
func (c *anthropicClient) Stream(ctx context.Context, p Prompt) (Stream, error) {
	resp, err := c.do(ctx, c.request(p, true))
	if err != nil {
		return nil, err
	}

	return newSSEStream(resp.Body, func(payload []byte) (string, bool, error) {
		var ev anthropicEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return "", false, fmt.Errorf("anthropic: decode stream event: %w", err)
		}
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" {
				return ev.Delta.Text, false, nil
			}
		case "message_stop":
			return "", true, nil
		case "error":
			if ev.Error != nil {
				return "", false, fmt.Errorf("anthropic: stream error %s: %s", ev.Error.Type, ev.Error.Message)
			}
			return "", false, fmt.Errorf("anthropic: stream error")
		}
		return "", false, nil
	}), nil
}

// do sends one request to the Messages API and returns the response when the
// status is 200. The caller owns resp.Body.
func (c *anthropicClient) do(ctx context.Context, reqBody anthropicRequest) (*http.Response, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: http request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("anthropic: unexpected status %d: %.200s", resp.StatusCode, errorBody(resp.Body))
	}
	return resp, nil
}
