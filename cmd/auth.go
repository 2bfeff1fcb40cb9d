package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"contentfactory/internal/distribution/youtube"
	"contentfactory/pkg/config"
)

var (
	authInfoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	authSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	authErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with external services",
	Long:  `Authenticate with YouTube or check which providers are configured.`,
}

var authYouTubeCmd = &cobra.Command{
	Use:   "youtube",
	Short: "Authenticate with YouTube (OAuth)",
	Long:  `Complete the YouTube OAuth flow using credentials from the .env file.`,
	RunE:  runAuthYouTube,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check authentication status for all services",
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authYouTubeCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

type serviceCheck struct {
	name     string
	ok       bool
	optional bool
	hint     string
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println(authInfoStyle.Render("\nService Authentication Status:\n"))

	checks := []serviceCheck{
		{name: "HeyGen", ok: cfg.HeyGenAPIKey != "", hint: "missing HEYGEN_API_KEY"},
		{name: "OpenAI / Sora", ok: cfg.OpenAIAPIKey != "", optional: true, hint: "OPENAI_API_KEY not set"},
		{name: "Groq", ok: cfg.GroqAPIKey != "", optional: cfg.LLM.Provider != "groq", hint: "GROQ_API_KEY not set"},
		{name: "Google Cloud", ok: cfg.GCPProject != "", optional: true, hint: "GOOGLE_CLOUD_PROJECT not set"},
		{name: "Postgres", ok: cfg.Database.URL != "", optional: true, hint: "DATABASE_URL not set, using the local store"},
		{name: "Redis", ok: cfg.Redis.URL != "", optional: true, hint: "REDIS_URL not set, settings are not cached"},
		{name: "NATS", ok: cfg.NATS.URL != "", optional: true, hint: "NATS_URL not set, status events disabled"},
	}
	for _, c := range checks {
		switch {
		case c.ok:
			fmt.Println(authSuccessStyle.Render("✓ " + c.name + ": configured"))
		case c.optional:
			fmt.Println(authInfoStyle.Render("○ " + c.name + ": " + c.hint))
		default:
			fmt.Println(authErrorStyle.Render("✗ " + c.name + ": " + c.hint))
		}
	}

	if cfg.YouTubeClientID != "" && cfg.YouTubeClientSecret != "" {
		auth := youtube.NewAuth(cfg.YouTubeClientID, cfg.YouTubeClientSecret, cfg.YouTubeTokenPath)
		if auth.IsAuthenticated() {
			fmt.Println(authSuccessStyle.Render("✓ YouTube: authenticated"))
		} else {
			fmt.Println(authErrorStyle.Render("✗ YouTube: credentials set, but not authenticated"))
			fmt.Println(authInfoStyle.Render("  Run: contentfactory auth youtube"))
		}
	} else {
		fmt.Println(authInfoStyle.Render("○ YouTube: missing YOUTUBE_CLIENT_ID or YOUTUBE_CLIENT_SECRET"))
	}

	fmt.Println()
	return nil
}

func runAuthYouTube(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.YouTubeClientID == "" || cfg.YouTubeClientSecret == "" {
		return fmt.Errorf("YOUTUBE_CLIENT_ID and YOUTUBE_CLIENT_SECRET must be set in .env")
	}

	return runYouTubeAuth(cmd.Context(), youtube.NewAuth(cfg.YouTubeClientID, cfg.YouTubeClientSecret, cfg.YouTubeTokenPath))
}

func runYouTubeAuth(ctx context.Context, auth *youtube.Auth) error {
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	listener, err := net.Listen("tcp", youtube.CallbackAddr)
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}

	server := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
	}

	server.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/callback" {
			http.NotFound(w, r)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			errChan <- fmt.Errorf("no code in callback")
			_, _ = fmt.Fprintf(w, "<html><body><h1>Error</h1><p>No authorization code received.</p></body></html>")
			return
		}

		codeChan <- code
		_, _ = fmt.Fprintf(w, "<html><body><h1>Success!</h1><p>You can close this window and return to the terminal.</p></body></html>")
	})

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := auth.GetAuthURL()
	fmt.Println(authInfoStyle.Render("\nOpening browser for YouTube authentication..."))
	fmt.Println(authInfoStyle.Render("If browser doesn't open, visit:\n" + authURL))

	_ = browser.OpenURL(authURL)

	fmt.Println(authInfoStyle.Render("\nWaiting for authentication..."))

	select {
	case code := <-codeChan:
		if err := auth.Exchange(ctx, code); err != nil {
			return err
		}
		fmt.Println(authSuccessStyle.Render("✓ YouTube authentication complete"))
		return nil

	case err := <-errChan:
		return err

	case <-ctx.Done():
		return ctx.Err()

	case <-time.After(5 * time.Minute):
		return fmt.Errorf("authentication timed out")
	}
}
