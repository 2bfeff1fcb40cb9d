package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"contentfactory/internal/distribution"
)

const (
	categoryID = "22"
	platform   = "youtube"

	// CallbackAddr is where the local OAuth callback listener binds.
	CallbackAddr = "localhost:8085"
)

var _ distribution.Uploader = (*Client)(nil)

type Client struct {
	auth *Auth
	opts []option.ClientOption
}

type Auth struct {
	config    *oauth2.Config
	token     *oauth2.Token
	tokenPath string
}

var scopes = []string{
	youtube.YoutubeUploadScope,
	youtube.YoutubeScope,
}

func NewAuth(clientID, clientSecret, tokenPath string) *Auth {
	return &Auth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       scopes,
			RedirectURL:  "http://" + CallbackAddr + "/callback",
		},
		tokenPath: tokenPath,
	}
}

// NewClient builds an uploader. Extra options are passed to the YouTube service, e.g. an endpoint override.
func NewClient(auth *Auth, opts ...option.ClientOption) *Client {
	return &Client{auth: auth, opts: opts}
}

func (c *Client) service(ctx context.Context) (*youtube.Service, error) {
	httpClient, err := c.auth.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth client: %w", err)
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, c.opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}
	return svc, nil
}

func (c *Client) Upload(ctx context.Context, req distribution.UploadRequest) (*distribution.UploadResponse, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	videoFile, err := os.Open(req.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open video file: %w", err)
	}
	defer func() { _ = videoFile.Close() }()

	privacy := req.Privacy
	if privacy == "" {
		privacy = "private"
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			CategoryId:  categoryID,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: privacy},
	}

	uploaded, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(videoFile).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to upload video: %w", err)
	}

	return &distribution.UploadResponse{
		ID:       uploaded.Id,
		URL:      fmt.Sprintf("https://youtube.com/watch?v=%s", uploaded.Id),
		Platform: platform,
	}, nil
}

func (c *Client) Platform() string {
	return platform
}

func (c *Client) Auth() *Auth {
	return c.auth
}

func (a *Auth) LoadToken() error {
	data, err := os.ReadFile(a.tokenPath)
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("failed to parse token: %w", err)
	}

	a.token = &token
	return nil
}

func (a *Auth) SaveToken() error {
	data, err := json.MarshalIndent(a.token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.WriteFile(a.tokenPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

func (a *Auth) GetAuthURL() string {
	return a.config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
}

func (a *Auth) Exchange(ctx context.Context, code string) error {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	a.token = token
	return a.SaveToken()
}

func (a *Auth) Client(ctx context.Context) (*http.Client, error) {
	if a.token == nil {
		if err := a.LoadToken(); err != nil {
			return nil, err
		}
	}

	return a.config.Client(ctx, a.token), nil
}

func (a *Auth) IsAuthenticated() bool {
	if a.token == nil {
		if err := a.LoadToken(); err != nil {
			return false
		}
	}
	return a.token != nil && a.token.Valid()
}
