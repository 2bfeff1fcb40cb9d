package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"contentfactory/internal/avatar"
	"contentfactory/internal/events"
	"contentfactory/internal/metrics"
	"contentfactory/internal/model"
	"contentfactory/internal/payload"
	"contentfactory/internal/provider"
	"contentfactory/internal/store"
)

// errAlreadyDispatched stops a dispatch whose video already carries a provider id.
var errAlreadyDispatched = errors.New("video already dispatched")

type dispatchJob struct {
	videoID string
	avatar  *avatar.Context
	// allowAvatarRetry permits one retry with the default avatar after an
	// avatar-not-found failure. The retry itself runs with it cleared.
	allowAvatarRetry bool
}

// dispatchAsync runs the provider call detached from the request. The caller's
// cancellation does not stop it; the dispatch timeout does.
func (s *Service) dispatchAsync(ctx context.Context, job dispatchJob) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		dispatchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Dispatch.Timeout)
		defer cancel()

		s.dispatch(dispatchCtx, job)
	}()
}

func (s *Service) dispatch(ctx context.Context, job dispatchJob) {
	start := s.now()

	video, err := s.videos.GetVideoByID(ctx, job.videoID)
	if err != nil {
		slog.Error("Dispatch could not load video", "video_id", job.videoID, "error", err)
		return
	}

	gen, ok := s.providers[video.Provider]
	if !ok {
		s.fail(ctx, video, fmt.Errorf("video provider %q is not configured", video.Provider))
		s.metrics.ObserveDispatch(string(video.Provider), metrics.OutcomeFailure, s.now().Sub(start))
		return
	}

	params := s.params(ctx, video, job.avatar)
	result, outcome, err := s.generate(ctx, gen, video, params)
	if errors.Is(err, errAlreadyDispatched) {
		slog.Info("Skipping dispatch, provider id already set", "video_id", video.ID)
		return
	}
	if err != nil {
		if job.allowAvatarRetry && provider.IsAvatarNotFound(err) && s.retryWithDefaultAvatar(ctx, video, job, err) {
			return
		}
		s.fail(ctx, video, err)
		s.metrics.ObserveDispatch(gen.Name(), metrics.OutcomeFailure, s.now().Sub(start))
		return
	}

	s.applyResult(ctx, video, result)
	s.metrics.ObserveDispatch(gen.Name(), outcome, s.now().Sub(start))
}

// generate tries the template first when one is set and falls back to a direct
// avatar render. Each path re-checks that the video has not been dispatched yet.
func (s *Service) generate(ctx context.Context, gen provider.Generator, video *model.Video, params payload.Params) (*provider.Result, string, error) {
	if video.TemplateID != "" {
		if err := s.ensureUndispatched(ctx, video.ID); err != nil {
			return nil, "", err
		}

		result, err := gen.GenerateVideoFromTemplate(ctx, provider.TemplateRequest{TemplateID: video.TemplateID, Params: params})
		if err == nil {
			return result, metrics.OutcomeSuccess, nil
		}
		if errors.Is(err, provider.ErrTemplateUnsupported) {
			slog.Debug("Provider has no template support, using direct generation", "provider", gen.Name())
		} else {
			slog.Warn("Template generation failed, falling back to avatar", "video_id", video.ID, "template_id", video.TemplateID, "error", err)
		}

		if err := s.ensureUndispatched(ctx, video.ID); err != nil {
			return nil, "", err
		}
		result, err = gen.GenerateVideo(ctx, provider.Request{Params: params})
		if err != nil {
			return nil, "", err
		}
		return result, metrics.OutcomeFallback, nil
	}

	if err := s.ensureUndispatched(ctx, video.ID); err != nil {
		return nil, "", err
	}
	result, err := gen.GenerateVideo(ctx, provider.Request{Params: params})
	if err != nil {
		return nil, "", err
	}
	return result, metrics.OutcomeSuccess, nil
}

func (s *Service) ensureUndispatched(ctx context.Context, videoID string) error {
	current, err := s.videos.GetVideoByID(ctx, videoID)
	if err != nil {
		return fmt.Errorf("reload video: %w", err)
	}
	if current.ProviderID() != "" {
		return errAlreadyDispatched
	}
	return nil
}

func (s *Service) retryWithDefaultAvatar(ctx context.Context, video *model.Video, job dispatchJob, cause error) bool {
	fallback, err := s.resolver.Resolve(ctx, video.UserID, "")
	if err != nil {
		slog.Warn("Avatar not found and no default avatar to retry with", "video_id", video.ID, "error", err)
		return false
	}
	slog.Warn("Avatar not found, retrying with default avatar", "video_id", video.ID, "avatar_id", fallback.AvatarID, "cause", cause)

	if fallback.AvatarRecordID != "" {
		video.AvatarID = model.StringPtr(fallback.AvatarRecordID)
		if err := s.videos.UpdateVideo(ctx, video); err != nil {
			slog.Warn("Could not record fallback avatar", "video_id", video.ID, "error", err)
		}
	}

	s.dispatch(ctx, dispatchJob{videoID: video.ID, avatar: fallback, allowAvatarRetry: false})
	return true
}

func (s *Service) params(ctx context.Context, video *model.Video, avatarCtx *avatar.Context) payload.Params {
	p := payload.Params{
		Topic:            video.Topic,
		Script:           video.ScriptText(),
		Style:            video.Style,
		Duration:         video.Duration,
		VoiceID:          s.cfg.HeyGen.VoiceID,
		OutputResolution: s.cfg.HeyGen.OutputResolution,
		AspectRatio:      video.AspectRatio,
		Test:             s.cfg.HeyGen.Test,
	}
	if avatarCtx != nil {
		p.AvatarID = avatarCtx.AvatarID
		p.IsPhotoAvatar = avatarCtx.IsPhoto
	}

	prefs := s.preferences(ctx, video.UserID)
	if prefs.VoiceID != "" {
		p.VoiceID = prefs.VoiceID
	}
	if prefs.OutputResolution != "" {
		p.OutputResolution = prefs.OutputResolution
	}
	if p.AspectRatio == "" {
		p.AspectRatio = prefs.AspectRatio
	}
	if p.AspectRatio == "" {
		p.AspectRatio = s.cfg.Video.AspectRatio
	}
	return p
}

func (s *Service) preferences(ctx context.Context, userID string) model.UserPreferences {
	if s.prefs == nil {
		return model.UserPreferences{}
	}
	prefs, err := s.prefs.GetPreferences(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("Could not load user preferences", "user_id", userID, "error", err)
		}
		return model.UserPreferences{}
	}
	return *prefs
}

func (s *Service) applyResult(ctx context.Context, video *model.Video, result *provider.Result) {
	video.HeyGenVideoID = model.StringPtr(result.VideoID)
	video.Status = provider.MapStatus(result.Status)
	if result.VideoURL != "" {
		video.VideoURL = model.StringPtr(result.VideoURL)
	}
	video.ErrorMessage = nil

	if err := s.videos.UpdateVideo(ctx, video); err != nil {
		slog.Error("Could not store dispatch result", "video_id", video.ID, "provider_id", result.VideoID, "error", err)
		return
	}
	slog.Info("Video dispatched", "video_id", video.ID, "provider_id", result.VideoID, "status", video.Status)

	s.mirrorPlanItem(ctx, video)
	s.publishStatus(ctx, video)
}

// fail records a dispatch error on the video. Nothing is returned to a caller.
func (s *Service) fail(ctx context.Context, video *model.Video, cause error) {
	kind, msg := provider.Classify(cause)
	slog.Error("Video dispatch failed", "video_id", video.ID, "kind", kind, "error", cause)

	video.Status = model.StatusFailed
	video.ErrorMessage = model.StringPtr(msg)
	if err := s.videos.UpdateVideo(ctx, video); err != nil {
		slog.Error("Could not store dispatch failure", "video_id", video.ID, "error", err)
		return
	}

	s.mirrorPlanItem(ctx, video)
	s.publishStatus(ctx, video)
}

func (s *Service) mirrorPlanItem(ctx context.Context, video *model.Video) {
	if video.PlanItemID == nil || s.planItems == nil {
		return
	}

	item, err := s.planItems.GetPlanItem(ctx, *video.PlanItemID)
	if err != nil {
		slog.Warn("Could not load plan item", "plan_item_id", *video.PlanItemID, "error", err)
		return
	}
	item.VideoID = model.StringPtr(video.ID)
	item.Status = video.Status
	item.ErrorMessage = video.ErrorMessage
	if err := s.planItems.UpdatePlanItem(ctx, item); err != nil {
		slog.Warn("Could not update plan item", "plan_item_id", item.ID, "error", err)
	}
}

func (s *Service) publishStatus(ctx context.Context, video *model.Video) {
	if err := s.events.VideoStatusChanged(ctx, events.NewStatusEvent(video, s.now())); err != nil {
		slog.Warn("Could not publish status event", "video_id", video.ID, "error", err)
	}
}
