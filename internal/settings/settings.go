package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"contentfactory/internal/model"
	"contentfactory/internal/store"
)

const KeyVideoProvider = "video_provider"

var ErrInvalidValue = errors.New("invalid setting value")

type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Service reads app settings through an optional cache. Read failures never
// surface; callers always get a usable value.
type Service struct {
	store store.SettingStore
	cache Cache
	ttl   time.Duration
}

// New returns a settings service. cache may be nil.
func New(s store.SettingStore, cache Cache, ttl time.Duration) *Service {
	return &Service{store: s, cache: cache, ttl: ttl}
}

func (s *Service) Get(ctx context.Context, key, fallback string) string {
	if s.cache != nil {
		value, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("Settings cache read failed", "key", key, "error", err)
		} else if ok {
			return value
		}
	}

	setting, err := s.store.GetSetting(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("Settings read failed, using default", "key", key, "error", err)
		}
		return fallback
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, setting.Value, s.ttl); err != nil {
			slog.Warn("Settings cache write failed", "key", key, "error", err)
		}
	}
	return setting.Value
}

func (s *Service) Set(ctx context.Context, key, value string) error {
	if key == KeyVideoProvider && !model.VideoProvider(value).Valid() {
		return fmt.Errorf("%w: unknown video provider %q", ErrInvalidValue, value)
	}

	if err := s.store.UpsertSetting(ctx, key, value); err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, key); err != nil {
			slog.Warn("Settings cache invalidation failed", "key", key, "error", err)
		}
	}
	return nil
}

// Provider returns the configured video provider, heygen unless a known provider is stored.
func (s *Service) Provider(ctx context.Context) model.VideoProvider {
	p := model.VideoProvider(s.Get(ctx, KeyVideoProvider, string(model.ProviderHeyGen)))
	if !p.Valid() {
		return model.ProviderHeyGen
	}
	return p
}
