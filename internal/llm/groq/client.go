package groq

import (
	"context"
	"fmt"

	"github.com/conneroisu/groq-go"

	"contentfactory/internal/llm"
	"contentfactory/pkg/prompts"
)

var _ llm.ScriptWriter = (*Client)(nil)

type Client struct {
	client  *groq.Client
	model   groq.ChatModel
	prompts *prompts.Prompts
}

// NewClient creates a Groq script writer. An empty baseURL uses the public API.
func NewClient(apiKey, model, baseURL string, p *prompts.Prompts) (*Client, error) {
	var (
		client *groq.Client
		err    error
	)
	if baseURL != "" {
		client, err = groq.NewClient(apiKey, groq.WithBaseURL(baseURL))
	} else {
		client, err = groq.NewClient(apiKey)
	}
	if err != nil {
		return nil, fmt.Errorf("create groq client: %w", err)
	}

	return &Client{
		client:  client,
		model:   groq.ChatModel(model),
		prompts: p,
	}, nil
}

func (c *Client) Name() string {
	return "groq"
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
	return c.generate(ctx, c.prompts.System.Script, prompt)
}

func (c *Client) generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model: c.model,
		Messages: []groq.ChatCompletionMessage{
			{Role: groq.RoleSystem, Content: systemPrompt},
			{Role: groq.RoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response")
	}

	content := llm.CleanScript(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty response")
	}

	return content, nil
}
