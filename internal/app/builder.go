package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"contentfactory/internal/avatar"
	"contentfactory/internal/distribution"
	"contentfactory/internal/distribution/youtube"
	"contentfactory/internal/events"
	"contentfactory/internal/llm"
	"contentfactory/internal/llm/gemini"
	"contentfactory/internal/llm/groq"
	"contentfactory/internal/llm/openai"
	"contentfactory/internal/metrics"
	"contentfactory/internal/model"
	"contentfactory/internal/provider"
	"contentfactory/internal/provider/heygen"
	"contentfactory/internal/provider/sora"
	"contentfactory/internal/settings"
	"contentfactory/internal/storage"
	"contentfactory/internal/store"
	"contentfactory/internal/store/memory"
	"contentfactory/internal/store/postgres"
	"contentfactory/pkg/config"
	"contentfactory/pkg/prompts"
)

type BuildResult struct {
	Service    *Service
	Avatars    *avatar.Manager
	Settings   *settings.Service
	Reconciler *Reconciler
	Store      store.Store
	// YouTube is nil when no OAuth client is configured.
	YouTube *youtube.Client

	closers []func() error
}

// Close releases connections opened by BuildService. Call it after Service.Wait.
func (r *BuildResult) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenStore returns the configured store. Postgres schemas are migrated on open.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return pg, nil
	case "memory", "":
		return memory.Open(cfg.Database.DataFile), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func BuildService(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*BuildResult, error) {
	result := &BuildResult{}
	fail := func(err error) (*BuildResult, error) {
		_ = result.Close()
		return nil, err
	}

	st, err := OpenStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	result.Store = st
	result.closers = append(result.closers, st.Close)

	var cache settings.Cache
	if cfg.Redis.URL != "" {
		redisCache, err := settings.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fail(err)
		}
		cache = redisCache
		result.closers = append(result.closers, redisCache.Close)
	}
	result.Settings = settings.New(st, cache, cfg.Redis.CacheTTL)

	publisher, err := events.New(cfg.NATS.URL, cfg.NATS.Subject)
	if err != nil {
		return fail(err)
	}
	result.closers = append(result.closers, publisher.Close)

	objects, err := buildObjectStore(ctx, cfg, result)
	if err != nil {
		return fail(err)
	}

	p, err := loadPrompts(cfg)
	if err != nil {
		return fail(err)
	}

	providers := make(map[model.VideoProvider]provider.Generator)
	var (
		directory provider.AvatarDirectory
		photos    provider.PhotoUploader
	)
	if cfg.HeyGenAPIKey != "" {
		heygenClient := heygen.NewClient(cfg.HeyGenAPIKey, heygen.Options{
			BaseURL:   cfg.HeyGen.BaseURL,
			UploadURL: cfg.HeyGen.UploadURL,
			ScriptKey: cfg.HeyGen.ScriptKey,
			AvatarKey: cfg.HeyGen.AvatarKey,
			NodeIDs:   cfg.HeyGen.NodeIDs,
		})
		providers[model.ProviderHeyGen] = heygenClient
		directory = heygenClient
		photos = heygenClient
	} else {
		slog.Warn("HEYGEN_API_KEY not set, heygen rendering disabled")
	}

	if cfg.OpenAIAPIKey != "" {
		soraClient, err := sora.NewClient(cfg.OpenAIAPIKey, sora.Options{
			BaseURL: cfg.Sora.BaseURL,
			Model:   cfg.Sora.Model,
			Prompts: p,
		})
		if err != nil {
			return fail(err)
		}
		providers[model.ProviderSora] = soraClient
	}

	writer, err := buildScriptWriter(ctx, cfg, p)
	if err != nil {
		return fail(err)
	}

	var uploader distribution.Uploader
	if cfg.YouTubeClientID != "" && cfg.YouTubeClientSecret != "" {
		auth := youtube.NewAuth(cfg.YouTubeClientID, cfg.YouTubeClientSecret, cfg.YouTubeTokenPath)
		result.YouTube = youtube.NewClient(auth)
		uploader = result.YouTube
	}

	resolver := avatar.NewResolver(st, objects, directory)
	result.Avatars = avatar.NewManager(avatar.ManagerOptions{
		Avatars:   st,
		Resolver:  resolver,
		Objects:   objects,
		Directory: directory,
		Photos:    photos,
	})

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	result.Service = NewService(ServiceOptions{
		Config:    cfg,
		Videos:    st,
		PlanItems: st,
		Prefs:     st,
		Settings:  result.Settings,
		Resolver:  resolver,
		Providers: providers,
		Events:    publisher,
		Metrics:   m,
		Writer:    writer,
		Uploader:  uploader,
	})
	result.Reconciler = NewReconciler(result.Service, cfg.Dispatch.PollInterval)

	return result, nil
}

func buildObjectStore(ctx context.Context, cfg *config.Config, result *BuildResult) (storage.ObjectStore, error) {
	if cfg.Storage.GCSBucket != "" {
		gcs, err := storage.NewGCSStorage(ctx, cfg.Storage.GCSBucket, "")
		if err != nil {
			return nil, err
		}
		result.closers = append(result.closers, gcs.Close)
		return gcs, nil
	}

	local := storage.NewLocalStorage(cfg.Storage.LocalDir, cfg.Storage.BaseURL)
	if err := local.EnsureDirectories(); err != nil {
		return nil, err
	}
	return local, nil
}

func loadPrompts(cfg *config.Config) (*prompts.Prompts, error) {
	if cfg.LLM.PromptsPath != "" {
		return prompts.LoadFrom(cfg.LLM.PromptsPath)
	}
	return prompts.Load()
}

// buildScriptWriter returns nil when the selected LLM has no credentials.
func buildScriptWriter(ctx context.Context, cfg *config.Config, p *prompts.Prompts) (llm.ScriptWriter, error) {
	switch cfg.LLM.Provider {
	case "groq":
		if cfg.GroqAPIKey == "" {
			return nil, nil
		}
		return groq.NewClient(cfg.GroqAPIKey, cfg.LLM.Groq.Model, "", p)
	case "gemini":
		if cfg.GCPProject == "" {
			return nil, nil
		}
		return gemini.NewClient(ctx, cfg.GCPProject, cfg.LLM.Gemini.Location, cfg.LLM.Gemini.Model, p)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil
		}
		return openai.NewClient(cfg.OpenAIAPIKey, openai.Options{
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Prompts: p,
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
