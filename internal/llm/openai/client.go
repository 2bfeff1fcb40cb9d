// Package openai writes scripts through any OpenAI-compatible chat completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"contentfactory/internal/llm"
	"contentfactory/pkg/httputil"
	"contentfactory/pkg/prompts"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"
	defaultTimeout = 30 * time.Second
	roleSystem     = "system"
	roleUser       = "user"
)

var _ llm.ScriptWriter = (*Client)(nil)

type Client struct {
	apiKey     string
	httpClient *httputil.RetryClient
	model      string
	baseURL    string
	prompts    *prompts.Prompts
}

type Options struct {
	Model   string
	BaseURL string
	Prompts *prompts.Prompts
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type response struct {
	ID      string    `json:"id"`
	Choices []choice  `json:"choices"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Message Message `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func NewClient(apiKey string, opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		apiKey: apiKey,
		httpClient: httputil.NewRetryClient(
			&http.Client{Timeout: defaultTimeout},
			httputil.DefaultRetryConfig(),
		),
		model:   opts.Model,
		baseURL: baseURL,
		prompts: opts.Prompts,
	}
}

func (c *Client) Name() string {
	return "openai"
}

func (c *Client) GenerateScript(ctx context.Context, req llm.ScriptRequest) (string, error) {
	prompt, err := c.prompts.RenderScript(prompts.ScriptParams{
		Topic:     req.Topic,
		Style:     req.Style,
		Duration:  req.Duration,
		WordCount: req.WordCount,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	data, err := json.Marshal(request{
		Model: c.model,
		Messages: []Message{
			{Role: roleSystem, Content: c.prompts.System.Script},
			{Role: roleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.doRequest(ctx, data)
	if err != nil {
		return "", err
	}
	return parseResponse(body)
}

func (c *Client) doRequest(ctx context.Context, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func parseResponse(data []byte) (string, error) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("openai error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := llm.CleanScript(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty response")
	}
	return content, nil
}
