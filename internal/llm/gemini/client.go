package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"contentfactory/internal/llm"
	"contentfactory/pkg/prompts"
)

var _ llm.ScriptWriter = (*Client)(nil)

type Client struct {
	client  *genai.Client
	model   string
	prompts *prompts.Prompts
}

func NewClient(ctx context.Context, project, location, model string, p *prompts.Prompts) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  project,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{
		client:  client,
		model:   model,
		prompts: p,
	}, nil
}

func (c *Client) Name() string {
	return "gemini"
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

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: c.prompts.System.Script}},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response")
	}

	text := llm.CleanScript(resp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("empty response")
	}
	return text, nil
}
