package heygen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"contentfactory/internal/payload"
	"contentfactory/internal/provider"
	"contentfactory/pkg/httputil"
)

const (
	providerName     = "heygen"
	defaultBaseURL   = "https://api.heygen.com"
	defaultUploadURL = "https://upload.heygen.com"
	defaultTimeout   = 60 * time.Second
)

var (
	_ provider.Generator       = (*Client)(nil)
	_ provider.AvatarDirectory = (*Client)(nil)
	_ provider.PhotoUploader   = (*Client)(nil)
)

type Client struct {
	apiKey     string
	baseURL    string
	uploadURL  string
	scriptKey  string
	avatarKey  string
	nodeIDs    []string
	httpClient *httputil.RetryClient
}

type Options struct {
	BaseURL    string
	UploadURL  string
	ScriptKey  string
	AvatarKey  string
	NodeIDs    []string
	HTTPClient *http.Client
	Retry      httputil.RetryConfig
}

func NewClient(apiKey string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.UploadURL == "" {
		opts.UploadURL = defaultUploadURL
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
		uploadURL:  opts.UploadURL,
		scriptKey:  opts.ScriptKey,
		avatarKey:  opts.AvatarKey,
		nodeIDs:    opts.NodeIDs,
		httpClient: httputil.NewRetryClient(opts.HTTPClient, opts.Retry),
	}
}

func (c *Client) Name() string {
	return providerName
}

type envelope struct {
	Code    any             `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   *errorBody      `json:"error,omitempty"`
	Data    json.RawMessage `json:"data"`
}

type errorBody struct {
	Code    any    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type generateData struct {
	VideoID string `json:"video_id"`
}

func (c *Client) GenerateVideo(ctx context.Context, req provider.Request) (*provider.Result, error) {
	body := payload.AvatarV2(req.Params)

	var data generateData
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v2/video/generate", body, &data); err != nil {
		return nil, fmt.Errorf("generate video: %w", err)
	}
	return generated(data)
}

// GenerateVideoFromTemplate prefers the template's character variable and falls back to
// node overrides when the template schema does not expose one.
func (c *Client) GenerateVideoFromTemplate(ctx context.Context, req provider.TemplateRequest) (*provider.Result, error) {
	if req.TemplateID == "" {
		return nil, fmt.Errorf("generate from template: %w", provider.ErrTemplateUnsupported)
	}

	spec := payload.TemplateSpec{
		ScriptKey: c.scriptKey,
		AvatarKey: c.avatarKey,
		NodeIDs:   c.nodeIDs,
	}

	schema, err := c.GetTemplate(ctx, req.TemplateID)
	if err != nil {
		slog.Warn("Template schema unavailable, using node override", "template_id", req.TemplateID, "error", err)
	} else {
		spec.Variables = schema.Variables
		spec.Nodes = schema.Nodes
	}

	var body any
	if v2, ok := payload.TemplateV2(req.Params, spec); ok {
		body = v2
	} else {
		body = payload.TemplateV1(req.Params, spec)
	}

	endpoint := fmt.Sprintf("%s/v2/template/%s/generate", c.baseURL, url.PathEscape(req.TemplateID))
	var data generateData
	if err := c.do(ctx, http.MethodPost, endpoint, body, &data); err != nil {
		return nil, fmt.Errorf("generate from template %s: %w", req.TemplateID, err)
	}
	return generated(data)
}

func generated(data generateData) (*provider.Result, error) {
	if data.VideoID == "" {
		return nil, &provider.APIError{Provider: providerName, StatusCode: http.StatusOK, Message: "response missing video_id"}
	}
	return &provider.Result{VideoID: data.VideoID, Status: "pending"}, nil
}

type Template struct {
	ID        string
	Variables map[string]payload.Variable
	Nodes     map[string]map[string]any
}

func (c *Client) GetTemplate(ctx context.Context, templateID string) (*Template, error) {
	var data struct {
		TemplateID string                      `json:"template_id"`
		Variables  map[string]payload.Variable `json:"variables"`
		Nodes      []map[string]any            `json:"nodes"`
	}

	endpoint := fmt.Sprintf("%s/v2/template/%s", c.baseURL, url.PathEscape(templateID))
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &data); err != nil {
		return nil, fmt.Errorf("get template %s: %w", templateID, err)
	}

	tmpl := &Template{ID: templateID, Variables: data.Variables, Nodes: make(map[string]map[string]any)}
	for _, node := range data.Nodes {
		if id, ok := node["id"].(string); ok && id != "" {
			tmpl.Nodes[id] = node
		}
	}
	return tmpl, nil
}

func (c *Client) GetVideoStatus(ctx context.Context, videoID string) (*provider.Status, error) {
	var data struct {
		Status   string     `json:"status"`
		VideoURL string     `json:"video_url"`
		Progress *float64   `json:"progress"`
		Error    *errorBody `json:"error"`
	}

	endpoint := c.baseURL + "/v1/video_status.get?video_id=" + url.QueryEscape(videoID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &data); err != nil {
		return nil, fmt.Errorf("get video status %s: %w", videoID, err)
	}

	status := &provider.Status{Status: data.Status, VideoURL: data.VideoURL}
	if data.Error != nil {
		status.Error = errorText(data.Error)
	}
	if data.Progress != nil {
		p := int(*data.Progress)
		status.Progress = &p
	}
	return status, nil
}

func (c *Client) ListGroupAvatars(ctx context.Context, groupID string) ([]provider.AvatarInfo, error) {
	var data struct {
		AvatarList []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			ImageURL string `json:"image_url"`
			Status   string `json:"status"`
			GroupID  string `json:"group_id"`
		} `json:"avatar_list"`
	}

	endpoint := fmt.Sprintf("%s/v2/avatar_group/%s/avatars", c.baseURL, url.PathEscape(groupID))
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &data); err != nil {
		return nil, fmt.Errorf("list avatar group %s: %w", groupID, err)
	}

	avatars := make([]provider.AvatarInfo, 0, len(data.AvatarList))
	for _, a := range data.AvatarList {
		avatars = append(avatars, provider.AvatarInfo{
			ID:         a.ID,
			Name:       a.Name,
			GroupID:    a.GroupID,
			PreviewURL: a.ImageURL,
			Status:     a.Status,
			IsPhoto:    true,
		})
	}
	return avatars, nil
}

func (c *Client) ListAvatars(ctx context.Context) ([]provider.AvatarInfo, error) {
	var data struct {
		Avatars []struct {
			AvatarID        string `json:"avatar_id"`
			AvatarName      string `json:"avatar_name"`
			PreviewImageURL string `json:"preview_image_url"`
		} `json:"avatars"`
		TalkingPhotos []struct {
			TalkingPhotoID   string `json:"talking_photo_id"`
			TalkingPhotoName string `json:"talking_photo_name"`
			PreviewImageURL  string `json:"preview_image_url"`
		} `json:"talking_photos"`
	}

	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v2/avatars", nil, &data); err != nil {
		return nil, fmt.Errorf("list avatars: %w", err)
	}

	avatars := make([]provider.AvatarInfo, 0, len(data.Avatars)+len(data.TalkingPhotos))
	for _, a := range data.Avatars {
		avatars = append(avatars, provider.AvatarInfo{
			ID:         a.AvatarID,
			Name:       a.AvatarName,
			PreviewURL: a.PreviewImageURL,
		})
	}
	for _, p := range data.TalkingPhotos {
		avatars = append(avatars, provider.AvatarInfo{
			ID:         p.TalkingPhotoID,
			Name:       p.TalkingPhotoName,
			PreviewURL: p.PreviewImageURL,
			IsPhoto:    true,
		})
	}
	return avatars, nil
}

// UploadTalkingPhoto registers an image as a talking photo.
func (c *Client) UploadTalkingPhoto(ctx context.Context, image []byte, contentType string) (*provider.AvatarInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL+"/v1/talking_photo", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	var photo struct {
		ID  string `json:"talking_photo_id"`
		URL string `json:"talking_photo_url"`
	}
	if err := c.send(req, &photo); err != nil {
		return nil, fmt.Errorf("upload talking photo: %w", err)
	}
	if photo.ID == "" {
		return nil, &provider.APIError{Provider: providerName, StatusCode: http.StatusOK, Message: "response missing talking_photo_id"}
	}
	return &provider.AvatarInfo{ID: photo.ID, PreviewURL: photo.URL, IsPhoto: true}, nil
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
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &provider.APIError{Provider: providerName, StatusCode: resp.StatusCode}
		switch {
		case decodeErr != nil:
			apiErr.Message = string(bytes.TrimSpace(raw))
		case env.Error != nil:
			apiErr.Code = codeText(env.Error.Code)
			apiErr.Message = errorText(env.Error)
		default:
			apiErr.Code = codeText(env.Code)
			apiErr.Message = env.Message
		}
		return apiErr
	}

	if decodeErr != nil {
		return fmt.Errorf("failed to parse response: %w", decodeErr)
	}
	if env.Error != nil && (env.Error.Message != "" || env.Error.Code != nil) {
		return &provider.APIError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Code:       codeText(env.Error.Code),
			Message:    errorText(env.Error),
		}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

func errorText(e *errorBody) string {
	if e.Message != "" {
		return e.Message
	}
	return e.Detail
}

func codeText(code any) string {
	switch v := code.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}
