package sora

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"contentfactory/internal/payload"
	"contentfactory/internal/provider"
	"contentfactory/pkg/httputil"
	"contentfactory/pkg/prompts"
)

const (
	providerName   = "sora"
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "sora-2"
	defaultTimeout = 60 * time.Second
)

// clip lengths accepted by the videos endpoint, in seconds
var allowedSeconds = []int{4, 8, 12}

var _ provider.Generator = (*Client)(nil)

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	prompts    *prompts.Prompts
	httpClient *httputil.RetryClient
}

type Options struct {
	BaseURL    string
	Model      string
	Prompts    *prompts.Prompts
	HTTPClient *http.Client
	Retry      httputil.RetryConfig
}

type createRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Seconds string `json:"seconds,omitempty"`
	Size    string `json:"size,omitempty"`
}

type videoJob struct {
	ID       string    `json:"id"`
	Status   string    `json:"status"`
	Progress *int      `json:"progress"`
	Error    *apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewClient(apiKey string, opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.Prompts == nil {
		p, err := prompts.Load()
		if err != nil {
			return nil, fmt.Errorf("load prompts: %w", err)
		}
		opts.Prompts = p
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}
	if opts.Retry == (httputil.RetryConfig{}) {
		opts.Retry = httputil.DefaultRetryConfig()
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    opts.BaseURL,
		model:      opts.Model,
		prompts:    opts.Prompts,
		httpClient: httputil.NewRetryClient(opts.HTTPClient, opts.Retry),
	}, nil
}

func (c *Client) Name() string {
	return providerName
}

func (c *Client) GenerateVideo(ctx context.Context, req provider.Request) (*provider.Result, error) {
	p := payload.Normalize(req.Params)

	prompt, err := c.prompts.RenderVideo(prompts.VideoParams{
		Topic:  p.Topic,
		Style:  string(p.Style),
		Script: p.Script,
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	body := createRequest{
		Model:   c.model,
		Prompt:  prompt,
		Seconds: strconv.Itoa(clipSeconds(p.Duration)),
		Size:    size(p.Dimension),
	}

	var job videoJob
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/videos", body, &job); err != nil {
		return nil, fmt.Errorf("generate video: %w", err)
	}
	if job.ID == "" {
		return nil, &provider.APIError{Provider: providerName, StatusCode: http.StatusOK, Message: "response missing id"}
	}
	return &provider.Result{VideoID: job.ID, Status: job.Status}, nil
}

func (c *Client) GenerateVideoFromTemplate(context.Context, provider.TemplateRequest) (*provider.Result, error) {
	return nil, provider.ErrTemplateUnsupported
}

func (c *Client) GetVideoStatus(ctx context.Context, videoID string) (*provider.Status, error) {
	var job videoJob
	endpoint := c.baseURL + "/v1/videos/" + url.PathEscape(videoID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &job); err != nil {
		return nil, fmt.Errorf("get video status %s: %w", videoID, err)
	}

	status := &provider.Status{Status: job.Status, Progress: job.Progress}
	if job.Status == "completed" {
		status.VideoURL = endpoint + "/content"
	}
	if job.Error != nil {
		status.Error = job.Error.Message
	}
	return status, nil
}

// clipSeconds picks the shortest supported clip covering duration.
func clipSeconds(duration int) int {
	for _, s := range allowedSeconds {
		if duration <= s {
			return s
		}
	}
	return allowedSeconds[len(allowedSeconds)-1]
}

func size(d payload.Dimension) string {
	if d.Height > d.Width {
		return "720x1280"
	}
	return "1280x720"
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &provider.APIError{Provider: providerName, StatusCode: resp.StatusCode}
		var env struct {
			Error *apiError `json:"error"`
		}
		if json.Unmarshal(raw, &env) == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		} else {
			apiErr.Message = string(bytes.TrimSpace(raw))
		}
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
