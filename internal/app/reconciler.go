package app

import (
	"context"
	"log/slog"
	"time"
)

// Reconciler periodically refreshes videos the provider is still rendering, so status
// moves forward even when nobody polls.
type Reconciler struct {
	service  *Service
	interval time.Duration
}

func NewReconciler(service *Service, interval time.Duration) *Reconciler {
	return &Reconciler{service: service, interval: interval}
}

func (r *Reconciler) Start(ctx context.Context) {
	slog.Info("Reconciler started", "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Reconciler stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce refreshes every in-flight video not touched within the last interval and
// returns how many were checked.
func (r *Reconciler) RunOnce(ctx context.Context) int {
	videos, err := r.service.videos.ListInFlightVideos(ctx, r.service.now().Add(-r.interval))
	if err != nil {
		slog.Error("Reconciler could not list videos", "error", err)
		return 0
	}

	for i := range videos {
		if _, err := r.service.refresh(ctx, &videos[i]); err != nil {
			slog.Warn("Reconciler refresh failed", "video_id", videos[i].ID, "error", err)
		}
	}
	if len(videos) > 0 {
		slog.Debug("Reconcile pass finished", "videos", len(videos))
	}
	return len(videos)
}
