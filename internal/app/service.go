package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"contentfactory/internal/avatar"
	"contentfactory/internal/distribution"
	"contentfactory/internal/events"
	"contentfactory/internal/llm"
	"contentfactory/internal/metrics"
	"contentfactory/internal/model"
	"contentfactory/internal/provider"
	"contentfactory/internal/script"
	"contentfactory/internal/store"
	"contentfactory/pkg/config"
	"contentfactory/pkg/httputil"
)

// AvatarResolver picks the avatar a render uses.
type AvatarResolver interface {
	Resolve(ctx context.Context, userID, requestedID string) (*avatar.Context, error)
}

// ProviderSelector reports which video provider new requests go to.
type ProviderSelector interface {
	Provider(ctx context.Context) model.VideoProvider
}

type Service struct {
	cfg       *config.Config
	videos    store.VideoStore
	planItems store.PlanItemStore
	prefs     store.PreferenceStore
	settings  ProviderSelector
	resolver  AvatarResolver
	providers map[model.VideoProvider]provider.Generator
	events    events.Publisher
	metrics   *metrics.Metrics
	writer    llm.ScriptWriter
	uploader  distribution.Uploader
	download  *httputil.RetryClient
	now       func() time.Time

	wg sync.WaitGroup
}

type ServiceOptions struct {
	Config    *config.Config
	Videos    store.VideoStore
	PlanItems store.PlanItemStore
	Prefs     store.PreferenceStore
	Settings  ProviderSelector
	Resolver  AvatarResolver
	Providers map[model.VideoProvider]provider.Generator
	Events    events.Publisher
	Metrics   *metrics.Metrics
	Writer    llm.ScriptWriter
	Uploader  distribution.Uploader
	// HTTPClient downloads finished renders for publishing.
	HTTPClient *http.Client
	Clock      func() time.Time
}

func NewService(opts ServiceOptions) *Service {
	s := &Service{
		cfg:       opts.Config,
		videos:    opts.Videos,
		planItems: opts.PlanItems,
		prefs:     opts.Prefs,
		settings:  opts.Settings,
		resolver:  opts.Resolver,
		providers: opts.Providers,
		events:    opts.Events,
		metrics:   opts.Metrics,
		writer:    opts.Writer,
		uploader:  opts.Uploader,
		now:       opts.Clock,
	}
	if s.events == nil {
		s.events = events.Noop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	s.download = httputil.NewRetryClient(httpClient, httputil.DefaultRetryConfig())
	return s
}

func (s *Service) Config() *config.Config {
	return s.cfg
}

type Request struct {
	UserID      string
	Topic       string
	Script      string
	Style       model.Style
	Duration    int
	AvatarID    string
	TemplateID  string
	AspectRatio string
	PlanItemID  string
}

// RequestManualVideo persists a pending video and dispatches the render in the
// background. Equivalent earlier requests are returned instead of creating a new record.
func (s *Service) RequestManualVideo(ctx context.Context, req Request) (*model.Video, error) {
	if err := s.normalize(&req); err != nil {
		return nil, err
	}

	providerName := s.settings.Provider(ctx)
	avatarCtx, err := s.resolveAvatar(ctx, providerName, req.UserID, req.AvatarID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.planItemVideo(ctx, req); err != nil || existing != nil {
		return existing, err
	}

	limited := script.EnforceWordLimit(req.Script, req.Duration)
	if limited.WasTrimmed {
		slog.Info("Script trimmed to duration budget", "max_words", limited.MaxWords, "words", limited.WordCount)
	}

	existing, err := s.findDuplicate(ctx, req, limited.Text, avatarCtx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		slog.Info("Reusing recent video", "video_id", existing.ID, "user_id", req.UserID)
		return existing, nil
	}

	text, generatedScript := limited.Text, false
	if text == "" && s.writer != nil {
		generated, err := s.GenerateScript(ctx, req.Topic, req.Style, req.Duration)
		if err != nil {
			return nil, err
		}
		text, generatedScript = generated.Text, generated.Text != ""
	}

	video := &model.Video{
		UserID:      req.UserID,
		Topic:       req.Topic,
		Style:       req.Style,
		Duration:    req.Duration,
		Status:      model.StatusPending,
		Provider:    providerName,
		TemplateID:  s.templateFor(providerName, req.TemplateID),
		AspectRatio: req.AspectRatio,
	}
	if text != "" {
		video.Script = model.StringPtr(text)
		video.ScriptGenerated = generatedScript
	}
	if avatarCtx != nil && avatarCtx.AvatarRecordID != "" {
		video.AvatarID = model.StringPtr(avatarCtx.AvatarRecordID)
	}
	if req.PlanItemID != "" {
		video.PlanItemID = model.StringPtr(req.PlanItemID)
	}

	if err := s.videos.InsertVideo(ctx, video); err != nil {
		return nil, classify(err, "create video")
	}
	slog.Info("Video requested", "video_id", video.ID, "provider", video.Provider, "template_id", video.TemplateID)

	s.mirrorPlanItem(ctx, video)
	s.publishStatus(ctx, video)
	s.dispatchAsync(ctx, dispatchJob{videoID: video.ID, avatar: avatarCtx, allowAvatarRetry: true})

	return cloneVideo(video), nil
}

func (s *Service) normalize(req *Request) error {
	if req.UserID == "" {
		return newError(KindInvalidInput, "user id is required")
	}
	if req.Topic == "" {
		return newError(KindInvalidInput, "topic is required")
	}
	if req.Style == "" {
		req.Style = model.StyleCasual
	}
	if !req.Style.Valid() {
		return newError(KindInvalidInput, "unknown style %q", req.Style)
	}
	if req.Duration < 0 {
		return newError(KindInvalidInput, "duration must not be negative")
	}
	if req.Duration == 0 {
		req.Duration = s.cfg.Video.DefaultDuration
	}
	return nil
}

// resolveAvatar is skipped for providers that render from text alone.
func (s *Service) resolveAvatar(ctx context.Context, p model.VideoProvider, userID, requestedID string) (*avatar.Context, error) {
	if p != model.ProviderHeyGen {
		return nil, nil
	}
	avatarCtx, err := s.resolver.Resolve(ctx, userID, requestedID)
	if err != nil {
		return nil, classify(err, "resolve avatar")
	}
	return avatarCtx, nil
}

func (s *Service) planItemVideo(ctx context.Context, req Request) (*model.Video, error) {
	if req.PlanItemID == "" || s.planItems == nil {
		return nil, nil
	}

	item, err := s.planItems.GetPlanItem(ctx, req.PlanItemID)
	if err != nil {
		return nil, classify(err, "load plan item")
	}
	if item.VideoID == nil || *item.VideoID == "" {
		return nil, nil
	}

	video, err := s.videos.GetVideo(ctx, req.UserID, *item.VideoID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "load plan item video")
	}
	slog.Info("Reusing plan item video", "plan_item_id", item.ID, "video_id", video.ID)
	return video, nil
}

// findDuplicate matches on the script the requester submitted, so requests that
// left the script to the LLM match each other. It is best effort: two concurrent
// requests can both miss each other.
func (s *Service) findDuplicate(ctx context.Context, req Request, text string, avatarCtx *avatar.Context) (*model.Video, error) {
	window := s.cfg.Video.DuplicateWindow
	if window <= 0 {
		return nil, nil
	}

	candidates, err := s.videos.FindRecentVideos(ctx, store.VideoFilter{
		UserID:   req.UserID,
		Topic:    req.Topic,
		Style:    req.Style,
		Duration: req.Duration,
		Since:    s.now().Add(-window),
		Statuses: []model.VideoStatus{model.StatusPending, model.StatusGenerating, model.StatusCompleted},
	})
	if err != nil {
		return nil, classify(err, "find recent videos")
	}

	var recordID string
	if avatarCtx != nil {
		recordID = avatarCtx.AvatarRecordID
	}
	for i := range candidates {
		if candidates[i].RequestedScript() == text && candidates[i].AvatarRecordID() == recordID {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

func (s *Service) templateFor(p model.VideoProvider, requested string) string {
	if p != model.ProviderHeyGen {
		return ""
	}
	if requested != "" {
		return requested
	}
	return s.cfg.HeyGen.TemplateID
}

// Retry re-dispatches a failed video with the avatar it was originally requested with.
func (s *Service) Retry(ctx context.Context, userID, videoID string) (*model.Video, error) {
	video, err := s.videos.GetVideo(ctx, userID, videoID)
	if err != nil {
		return nil, classify(err, "load video")
	}
	if video.Status != model.StatusFailed {
		return nil, newError(KindValidation, "only failed videos can be retried, video is %s", video.Status)
	}

	avatarCtx, err := s.resolveAvatar(ctx, video.Provider, userID, video.AvatarRecordID())
	if err != nil {
		return nil, err
	}

	video.Status = model.StatusPending
	video.HeyGenVideoID = nil
	video.VideoURL = nil
	video.ErrorMessage = nil
	if err := s.videos.UpdateVideo(ctx, video); err != nil {
		return nil, classify(err, "reset video")
	}
	slog.Info("Retrying video", "video_id", video.ID)

	s.mirrorPlanItem(ctx, video)
	s.publishStatus(ctx, video)
	s.dispatchAsync(ctx, dispatchJob{videoID: video.ID, avatar: avatarCtx, allowAvatarRetry: true})

	return cloneVideo(video), nil
}

type StatusResult struct {
	Video    *model.Video `json:"video"`
	Progress *int         `json:"progress,omitempty"`
}

// RefreshStatus queries the provider for in-flight videos and stores the mapped status.
func (s *Service) RefreshStatus(ctx context.Context, userID, videoID string) (*StatusResult, error) {
	video, err := s.videos.GetVideo(ctx, userID, videoID)
	if err != nil {
		return nil, classify(err, "load video")
	}
	return s.refresh(ctx, video)
}

func (s *Service) refresh(ctx context.Context, video *model.Video) (*StatusResult, error) {
	if !video.Status.InFlight() || video.ProviderID() == "" {
		return &StatusResult{Video: video}, nil
	}

	gen, ok := s.providers[video.Provider]
	if !ok {
		return nil, newError(KindConfiguration, "video provider %q is not configured", video.Provider)
	}

	status, err := gen.GetVideoStatus(ctx, video.ProviderID())
	if err != nil {
		_, msg := provider.Classify(err)
		return nil, &Error{Kind: KindProvider, Msg: msg, Err: err}
	}

	next := provider.MapStatus(status.Status)
	s.metrics.ObserveRefresh(string(next))

	changed := next != video.Status
	video.Status = next
	if status.VideoURL != "" && (video.VideoURL == nil || *video.VideoURL != status.VideoURL) {
		video.VideoURL = model.StringPtr(status.VideoURL)
		changed = true
	}
	if next == model.StatusFailed {
		msg := status.Error
		if msg == "" {
			msg = "video generation failed"
		}
		video.ErrorMessage = model.StringPtr(msg)
	}

	if changed {
		if err := s.videos.UpdateVideo(ctx, video); err != nil {
			return nil, classify(err, "update video status")
		}
		slog.Info("Video status refreshed", "video_id", video.ID, "status", video.Status)
		s.mirrorPlanItem(ctx, video)
		s.publishStatus(ctx, video)
	}

	return &StatusResult{Video: video, Progress: status.Progress}, nil
}

func (s *Service) Get(ctx context.Context, userID, videoID string) (*model.Video, error) {
	video, err := s.videos.GetVideo(ctx, userID, videoID)
	if err != nil {
		return nil, classify(err, "load video")
	}
	return video, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]model.Video, error) {
	videos, err := s.videos.ListVideos(ctx, userID)
	if err != nil {
		return nil, classify(err, "list videos")
	}
	return videos, nil
}

func (s *Service) Delete(ctx context.Context, userID, videoID string) error {
	if err := s.videos.DeleteVideo(ctx, userID, videoID); err != nil {
		return classify(err, "delete video")
	}
	slog.Info("Video deleted", "video_id", videoID, "user_id", userID)
	return nil
}

// Preferences returns the user's payload defaults; a user without a row gets the zero value.
func (s *Service) Preferences(ctx context.Context, userID string) (*model.UserPreferences, error) {
	if s.prefs == nil {
		return nil, newError(KindConfiguration, "no preference store configured")
	}
	prefs, err := s.prefs.GetPreferences(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return &model.UserPreferences{UserID: userID}, nil
	}
	if err != nil {
		return nil, classify(err, "get preferences")
	}
	return prefs, nil
}

func (s *Service) SavePreferences(ctx context.Context, prefs model.UserPreferences) (*model.UserPreferences, error) {
	if s.prefs == nil {
		return nil, newError(KindConfiguration, "no preference store configured")
	}
	if prefs.UserID == "" {
		return nil, newError(KindInvalidInput, "user id is required")
	}
	if err := s.prefs.UpsertPreferences(ctx, &prefs); err != nil {
		return nil, classify(err, "save preferences")
	}
	return &prefs, nil
}

// GenerateScript asks the configured LLM for a script and trims it to the duration budget.
func (s *Service) GenerateScript(ctx context.Context, topic string, style model.Style, duration int) (*script.Limited, error) {
	if s.writer == nil {
		return nil, newError(KindConfiguration, "no script writer configured")
	}
	if topic == "" {
		return nil, newError(KindInvalidInput, "topic is required")
	}
	if duration <= 0 {
		duration = s.cfg.Video.DefaultDuration
	}

	text, err := s.writer.GenerateScript(ctx, llm.ScriptRequest{
		Topic:     topic,
		Style:     string(style),
		Duration:  duration,
		WordCount: script.MaxWordsForDuration(duration),
	})
	if err != nil {
		return nil, &Error{Kind: KindProvider, Msg: "generate script with " + s.writer.Name(), Err: err}
	}

	limited := script.EnforceWordLimit(text, duration)
	return &limited, nil
}

// Wait blocks until background dispatches have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func cloneVideo(v *model.Video) *model.Video {
	c := *v
	return &c
}
