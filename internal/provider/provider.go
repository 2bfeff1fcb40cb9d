package provider

import (
	"context"
	"errors"

	"contentfactory/internal/model"
	"contentfactory/internal/payload"
)

// ErrTemplateUnsupported is returned by generators that cannot render templates.
var ErrTemplateUnsupported = errors.New("template generation not supported")

type Generator interface {
	GenerateVideo(ctx context.Context, req Request) (*Result, error)
	GenerateVideoFromTemplate(ctx context.Context, req TemplateRequest) (*Result, error)
	GetVideoStatus(ctx context.Context, videoID string) (*Status, error)
	Name() string
}

// AvatarDirectory is the avatar side of a provider account.
type AvatarDirectory interface {
	ListGroupAvatars(ctx context.Context, groupID string) ([]AvatarInfo, error)
	ListAvatars(ctx context.Context) ([]AvatarInfo, error)
}

type PhotoUploader interface {
	UploadTalkingPhoto(ctx context.Context, image []byte, contentType string) (*AvatarInfo, error)
}

type Request struct {
	Params payload.Params
}

type TemplateRequest struct {
	TemplateID string
	Params     payload.Params
}

type Result struct {
	VideoID  string
	Status   string
	VideoURL string
}

type Status struct {
	Status   string
	VideoURL string
	Error    string
	// Progress is a percentage when the provider reports one.
	Progress *int
}

type AvatarInfo struct {
	ID           string
	Name         string
	GroupID      string
	PreviewURL   string
	ThumbnailURL string
	Status       string
	IsPhoto      bool
}

// MapStatus folds a provider status into the stored lifecycle.
func MapStatus(status string) model.VideoStatus {
	switch status {
	case "completed":
		return model.StatusCompleted
	case "failed":
		return model.StatusFailed
	default:
		return model.StatusGenerating
	}
}
