package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath       = "config.yaml"
	defaultListenAddr       = ":8080"
	defaultMetricsAddr      = ":9090"
	defaultHeyGenBaseURL    = "https://api.heygen.com"
	defaultHeyGenUploadURL  = "https://upload.heygen.com"
	defaultScriptKey        = "script"
	defaultAvatarKey        = "avatar"
	defaultOutputResolution = "720p"
	defaultAspectRatio      = "16:9"
	defaultVoiceID          = "1bd001e7e50f421d891986aad5158bc8"
	defaultSoraBaseURL      = "https://api.openai.com"
	defaultSoraModel        = "sora-2"
	defaultLLMProvider      = "groq"
	defaultGroqModel        = "llama-3.3-70b-versatile"
	defaultGeminiModel      = "gemini-2.5-flash"
	defaultGeminiLocation   = "us-central1"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultOpenAIBaseURL    = "https://api.openai.com/v1/chat/completions"
	defaultDuration         = 30
	defaultDuplicateWindow  = 6 * time.Hour
	defaultDispatchTimeout  = 10 * time.Minute
	defaultPollInterval     = 30 * time.Second
	defaultSettingsCacheTTL = time.Minute
	defaultNATSSubject      = "videos.status"
	defaultStorageDir       = "./uploads"
	defaultStorageBaseURL   = "http://localhost:8080/uploads"
	defaultTokenPath        = "./youtube_token.json"
	defaultPrivacyStatus    = "private"
	defaultDataFile         = "./data/store.json"
)

type Config struct {
	HeyGenAPIKey        string `yaml:"-"`
	OpenAIAPIKey        string `yaml:"-"`
	GroqAPIKey          string `yaml:"-"`
	GCPProject          string `yaml:"-"`
	YouTubeClientID     string `yaml:"-"`
	YouTubeClientSecret string `yaml:"-"`
	YouTubeTokenPath    string `yaml:"-"`

	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	HeyGen   HeyGenConfig   `yaml:"heygen"`
	Sora     SoraConfig     `yaml:"sora"`
	LLM      LLMConfig      `yaml:"llm"`
	Video    VideoConfig    `yaml:"video"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Storage  StorageConfig  `yaml:"storage"`
	YouTube  YouTubeConfig  `yaml:"youtube"`
	Secrets  SecretsConfig  `yaml:"secrets"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver   string `yaml:"driver"`
	URL      string `yaml:"url"`
	DataFile string `yaml:"data_file"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type HeyGenConfig struct {
	BaseURL          string   `yaml:"base_url"`
	UploadURL        string   `yaml:"upload_url"`
	TemplateID       string   `yaml:"template_id"`
	ScriptKey        string   `yaml:"script_key"`
	AvatarKey        string   `yaml:"avatar_key"`
	NodeIDs          []string `yaml:"node_ids"`
	OutputResolution string   `yaml:"output_resolution"`
	VoiceID          string   `yaml:"voice_id"`
	Test             bool     `yaml:"test"`
}

type SoraConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type LLMConfig struct {
	// Provider is "groq", "gemini" or "openai"; empty API keys disable script generation.
	Provider    string `yaml:"provider"`
	PromptsPath string `yaml:"prompts_path"`
	Groq        struct {
		Model string `yaml:"model"`
	} `yaml:"groq"`
	Gemini struct {
		Model    string `yaml:"model"`
		Location string `yaml:"location"`
	} `yaml:"gemini"`
	OpenAI struct {
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"openai"`
}

type VideoConfig struct {
	DefaultDuration int           `yaml:"default_duration"`
	AspectRatio     string        `yaml:"aspect_ratio"`
	DuplicateWindow time.Duration `yaml:"duplicate_window"`
}

type DispatchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Reconcile    bool          `yaml:"reconcile"`
}

type StorageConfig struct {
	GCSBucket string `yaml:"gcs_bucket"`
	LocalDir  string `yaml:"local_dir"`
	BaseURL   string `yaml:"base_url"`
}

type YouTubeConfig struct {
	DefaultTags   []string `yaml:"default_tags"`
	PrivacyStatus string   `yaml:"privacy_status"`
}

type SecretsConfig struct {
	// Project enables loading API keys from Google Secret Manager.
	Project string `yaml:"project"`
}

// Load reads .env, then config.yaml (optional), applies defaults and finally
// overlays secrets from Secret Manager when a project is configured.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, defaultConfigPath)
}

func LoadFrom(ctx context.Context, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{}
	if err := loadYAMLConfig(cfg, path); err != nil {
		return nil, err
	}

	applyEnv(cfg)
	applyDefaults(cfg)

	if cfg.Secrets.Project != "" {
		if err := loadSecrets(ctx, cfg); err != nil {
			return nil, fmt.Errorf("load secrets: %w", err)
		}
	}

	return cfg, nil
}

func loadYAMLConfig(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("No config file found, using defaults", "path", path)
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HeyGenAPIKey = os.Getenv("HEYGEN_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	cfg.GCPProject = os.Getenv("GOOGLE_CLOUD_PROJECT")
	cfg.YouTubeClientID = os.Getenv("YOUTUBE_CLIENT_ID")
	cfg.YouTubeClientSecret = os.Getenv("YOUTUBE_CLIENT_SECRET")
	cfg.YouTubeTokenPath = getEnvOrDefault("YOUTUBE_TOKEN_PATH", defaultTokenPath)

	setFromEnv(&cfg.Database.URL, "DATABASE_URL")
	setFromEnv(&cfg.Redis.URL, "REDIS_URL")
	setFromEnv(&cfg.NATS.URL, "NATS_URL")
	setFromEnv(&cfg.Server.Addr, "LISTEN_ADDR")
	setFromEnv(&cfg.HeyGen.TemplateID, "HEYGEN_TEMPLATE_ID")
	setFromEnv(&cfg.HeyGen.ScriptKey, "HEYGEN_SCRIPT_KEY")
	setFromEnv(&cfg.HeyGen.AvatarKey, "HEYGEN_AVATAR_KEY")
	setFromEnv(&cfg.HeyGen.OutputResolution, "HEYGEN_OUTPUT_RESOLUTION")
	setFromEnv(&cfg.HeyGen.VoiceID, "HEYGEN_VOICE_ID")
	setFromEnv(&cfg.Storage.GCSBucket, "GCS_BUCKET")
	setFromEnv(&cfg.Secrets.Project, "SECRETS_PROJECT")

	if ids := os.Getenv("HEYGEN_NODE_IDS"); ids != "" {
		cfg.HeyGen.NodeIDs = splitList(ids)
	}
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(cfg)
	applyDatabaseDefaults(cfg)
	applyRedisDefaults(cfg)
	applyNATSDefaults(cfg)
	applyMetricsDefaults(cfg)
	applyHeyGenDefaults(cfg)
	applySoraDefaults(cfg)
	applyLLMDefaults(cfg)
	applyVideoDefaults(cfg)
	applyDispatchDefaults(cfg)
	applyStorageDefaults(cfg)
	applyYouTubeDefaults(cfg)
}

func applyServerDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultListenAddr
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
}

func applyDatabaseDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		if cfg.Database.URL != "" {
			cfg.Database.Driver = "postgres"
		} else {
			cfg.Database.Driver = "memory"
		}
	}
	if cfg.Database.DataFile == "" {
		cfg.Database.DataFile = defaultDataFile
	}
}

func applyRedisDefaults(cfg *Config) {
	if cfg.Redis.CacheTTL == 0 {
		cfg.Redis.CacheTTL = defaultSettingsCacheTTL
	}
}

func applyNATSDefaults(cfg *Config) {
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = defaultNATSSubject
	}
}

func applyMetricsDefaults(cfg *Config) {
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = defaultMetricsAddr
	}
}

func applyHeyGenDefaults(cfg *Config) {
	if cfg.HeyGen.BaseURL == "" {
		cfg.HeyGen.BaseURL = defaultHeyGenBaseURL
	}
	if cfg.HeyGen.UploadURL == "" {
		cfg.HeyGen.UploadURL = defaultHeyGenUploadURL
	}
	if cfg.HeyGen.ScriptKey == "" {
		cfg.HeyGen.ScriptKey = defaultScriptKey
	}
	if cfg.HeyGen.AvatarKey == "" {
		cfg.HeyGen.AvatarKey = defaultAvatarKey
	}
	if cfg.HeyGen.OutputResolution == "" {
		cfg.HeyGen.OutputResolution = defaultOutputResolution
	}
	if cfg.HeyGen.VoiceID == "" {
		cfg.HeyGen.VoiceID = defaultVoiceID
	}
}

func applySoraDefaults(cfg *Config) {
	if cfg.Sora.BaseURL == "" {
		cfg.Sora.BaseURL = defaultSoraBaseURL
	}
	if cfg.Sora.Model == "" {
		cfg.Sora.Model = defaultSoraModel
	}
}

func applyLLMDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = defaultLLMProvider
	}
	if cfg.LLM.Groq.Model == "" {
		cfg.LLM.Groq.Model = defaultGroqModel
	}
	if cfg.LLM.Gemini.Model == "" {
		cfg.LLM.Gemini.Model = defaultGeminiModel
	}
	if cfg.LLM.Gemini.Location == "" {
		cfg.LLM.Gemini.Location = defaultGeminiLocation
	}
	if cfg.LLM.OpenAI.Model == "" {
		cfg.LLM.OpenAI.Model = defaultOpenAIModel
	}
	if cfg.LLM.OpenAI.BaseURL == "" {
		cfg.LLM.OpenAI.BaseURL = defaultOpenAIBaseURL
	}
}

func applyVideoDefaults(cfg *Config) {
	if cfg.Video.DefaultDuration == 0 {
		cfg.Video.DefaultDuration = defaultDuration
	}
	if cfg.Video.AspectRatio == "" {
		cfg.Video.AspectRatio = defaultAspectRatio
	}
	if cfg.Video.DuplicateWindow == 0 {
		cfg.Video.DuplicateWindow = defaultDuplicateWindow
	}
}

func applyDispatchDefaults(cfg *Config) {
	if cfg.Dispatch.Timeout == 0 {
		cfg.Dispatch.Timeout = defaultDispatchTimeout
	}
	if cfg.Dispatch.PollInterval == 0 {
		cfg.Dispatch.PollInterval = defaultPollInterval
	}
}

func applyStorageDefaults(cfg *Config) {
	if cfg.Storage.LocalDir == "" {
		cfg.Storage.LocalDir = defaultStorageDir
	}
	if cfg.Storage.BaseURL == "" {
		cfg.Storage.BaseURL = defaultStorageBaseURL
	}
}

func applyYouTubeDefaults(cfg *Config) {
	if len(cfg.YouTube.DefaultTags) == 0 {
		cfg.YouTube.DefaultTags = []string{"shorts"}
	}
	if cfg.YouTube.PrivacyStatus == "" {
		cfg.YouTube.PrivacyStatus = defaultPrivacyStatus
	}
}

func setFromEnv(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
