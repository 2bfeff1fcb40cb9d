package store

import (
	"context"
	"errors"
	"time"

	"contentfactory/internal/model"
)

var ErrNotFound = errors.New("record not found")

type VideoFilter struct {
	UserID   string
	Topic    string
	Style    model.Style
	Duration int
	Since    time.Time
	Statuses []model.VideoStatus
}

type VideoStore interface {
	// InsertVideo assigns ID and timestamps when they are empty.
	InsertVideo(ctx context.Context, video *model.Video) error
	GetVideo(ctx context.Context, userID, id string) (*model.Video, error)
	GetVideoByID(ctx context.Context, id string) (*model.Video, error)
	ListVideos(ctx context.Context, userID string) ([]model.Video, error)
	// FindRecentVideos returns matches newest first.
	FindRecentVideos(ctx context.Context, filter VideoFilter) ([]model.Video, error)
	// ListInFlightVideos returns pending/generating videos with a provider id,
	// last updated before the given time.
	ListInFlightVideos(ctx context.Context, updatedBefore time.Time) ([]model.Video, error)
	UpdateVideo(ctx context.Context, video *model.Video) error
	DeleteVideo(ctx context.Context, userID, id string) error
}

type AvatarStore interface {
	InsertAvatar(ctx context.Context, avatar *model.Avatar) error
	GetAvatar(ctx context.Context, userID, id string) (*model.Avatar, error)
	FindAvatarByProviderID(ctx context.Context, userID, providerID string) (*model.Avatar, error)
	DefaultAvatar(ctx context.Context, userID string) (*model.Avatar, error)
	FirstActiveAvatar(ctx context.Context, userID string) (*model.Avatar, error)
	ListAvatars(ctx context.Context, userID string) ([]model.Avatar, error)
	UpdateAvatar(ctx context.Context, avatar *model.Avatar) error
	// SetDefaultAvatar marks id as the only default avatar of the user.
	SetDefaultAvatar(ctx context.Context, userID, id string) error
	DeleteAvatar(ctx context.Context, userID, id string) error
}

type PlanItemStore interface {
	InsertPlanItem(ctx context.Context, item *model.PlanItem) error
	GetPlanItem(ctx context.Context, id string) (*model.PlanItem, error)
	UpdatePlanItem(ctx context.Context, item *model.PlanItem) error
}

type SettingStore interface {
	GetSetting(ctx context.Context, key string) (*model.AppSetting, error)
	// UpsertSetting keeps at most one row per key.
	UpsertSetting(ctx context.Context, key, value string) error
}

type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (*model.UserPreferences, error)
	UpsertPreferences(ctx context.Context, prefs *model.UserPreferences) error
}

type Store interface {
	VideoStore
	AvatarStore
	PlanItemStore
	SettingStore
	PreferenceStore
	Close() error
}
