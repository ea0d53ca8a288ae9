package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIBaseURL is the default chat completions base URL.
const OpenAIBaseURL = "https://api.openai.com/v1"

// openAIClient is a Generator backed by an OpenAI-compatible
// /chat/completions endpoint. OpenAI and DeepSeek both speak this format.
type openAIClient struct {
	name       string // used as the error prefix, e.g. "openai" or "deepseek"
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIClient returns a Generator that calls the OpenAI API.
//   - apiKey:  your OPENAI_API_KEY
//   - model:   e.g. "gpt-4o-mini"
//   - baseURL: "" for the public endpoint, or any compatible gateway
func NewOpenAIClient(apiKey, model, baseURL string) Generator {
	if baseURL == "" {
		baseURL = OpenAIBaseURL
	}
	return newOpenAICompatible("openai", apiKey, model, baseURL)
}

func newOpenAICompatible(name, apiKey, model, baseURL string) *openAIClient {
	return &openAIClient{
		name:    name,
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		// No overall timeout: streams run as long as the answer. Callers
		// bound every call with a context deadline.
		httpClient: &http.Client{},
	}
}

// ─── OPENAI-COMPATIBLE API SHAPES ────────────────────────────────────────────

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *openAIError `json:"error"`
}

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *openAIError `json:"error"`
}

// ─── IMPLEMENTATION ──────────────────────────────────────────────────────────

func (c *openAIClient) request(p Prompt, stream bool) openAIRequest {
	msgs := make([]openAIMessage, 0, 2)
	if p.System != "" {
		msgs = append(msgs, openAIMessage{Role: "system", Content: p.System})
	}
	msgs = append(msgs, openAIMessage{Role: "user", Content: p.User})

	return openAIRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   p.maxTokens(),
		Temperature: p.Temperature,
		Stream:      stream,
	}
}

// Generate sends one non-streaming completion and returns the first choice.
func (c *openAIClient) Generate(ctx context.Context, p Prompt) (string, error) {
	resp, err := c.do(ctx, c.request(p, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB cap
	if err != nil {
		return "", fmt.Errorf("%s: read response: %w", c.name, err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("%s: unmarshal response: %w", c.name, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%s: API error %s: %s", c.name, parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices in response", c.name)
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%s: %w", c.name, ErrEmptyResponse)
	}
	return text, nil
}

// Stream opens a streaming completion. Chunks are choices[0].delta.content.
func (c *openAIClient) Stream(ctx context.Context, p Prompt) (Stream, error) {
	resp, err := c.do(ctx, c.request(p, true))
	if err != nil {
		return nil, err
	}

	return newSSEStream(resp.Body, func(payload []byte) (string, bool, error) {
		var chunk openAIChunk
		if err := json.Unmarshal(payload, &chunk); err != nil {
			return "", false, fmt.Errorf("%s: decode stream chunk: %w", c.name, err)
		}
		if chunk.Error != nil {
			return "", false, fmt.Errorf("%s: stream error %s: %s", c.name, chunk.Error.Type, chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			return "", false, nil
		}
		return chunk.Choices[0].Delta.Content, false, nil
	}), nil
}

// do posts reqBody and returns the response when the status is 200. The
// caller owns resp.Body.
func (c *openAIClient) do(ctx context.Context, reqBody openAIRequest) (*http.Response, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if reqBody.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: http request: %w", c.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("%s: unexpected status %d after %s: %.200s",
			c.name, resp.StatusCode, time.Since(start).Round(time.Millisecond), errorBody(resp.Body))
	}
	return resp, nil
}
