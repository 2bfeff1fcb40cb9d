package config

import (
	"context"
	"fmt"
	"log/slog"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// secretTargets maps Secret Manager secret names to the config field they fill.
// Values already present in the environment win.
func secretTargets(cfg *Config) map[string]*string {
	return map[string]*string{
		"HEYGEN_API_KEY":        &cfg.HeyGenAPIKey,
		"OPENAI_API_KEY":        &cfg.OpenAIAPIKey,
		"GROQ_API_KEY":          &cfg.GroqAPIKey,
		"YOUTUBE_CLIENT_ID":     &cfg.YouTubeClientID,
		"YOUTUBE_CLIENT_SECRET": &cfg.YouTubeClientSecret,
		"DATABASE_URL":          &cfg.Database.URL,
	}
}

type secretAccessor interface {
	Access(ctx context.Context, name string) (string, error)
}

type gcpSecrets struct {
	client  *secretmanager.Client
	project string
}

func (s *gcpSecrets) Access(ctx context.Context, name string) (string, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.project, name),
	})
	if err != nil {
		return "", err
	}
	return string(resp.GetPayload().GetData()), nil
}

func loadSecrets(ctx context.Context, cfg *Config) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create secret manager client: %w", err)
	}
	defer func() { _ = client.Close() }()

	applySecrets(ctx, cfg, &gcpSecrets{client: client, project: cfg.Secrets.Project})

	// DATABASE_URL may arrive from the secret store after driver selection ran.
	if cfg.Database.URL != "" && cfg.Database.Driver == "memory" {
		cfg.Database.Driver = "postgres"
	}
	return nil
}

func applySecrets(ctx context.Context, cfg *Config, accessor secretAccessor) {
	for name, dst := range secretTargets(cfg) {
		if *dst != "" {
			continue
		}
		value, err := accessor.Access(ctx, name)
		if err != nil {
			slog.Debug("Secret not loaded", "name", name, "error", err)
			continue
		}
		*dst = value
	}
}
