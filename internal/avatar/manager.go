package avatar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/google/uuid"

	"contentfactory/internal/model"
	"contentfactory/internal/provider"
	"contentfactory/internal/storage"
	"contentfactory/internal/store"
)

type Manager struct {
	avatars   store.AvatarStore
	resolver  *Resolver
	objects   storage.ObjectStore
	directory provider.AvatarDirectory
	photos    provider.PhotoUploader
}

type ManagerOptions struct {
	Avatars   store.AvatarStore
	Resolver  *Resolver
	Objects   storage.ObjectStore
	Directory provider.AvatarDirectory
	Photos    provider.PhotoUploader
}

func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		avatars:   opts.Avatars,
		resolver:  opts.Resolver,
		objects:   opts.Objects,
		directory: opts.Directory,
		photos:    opts.Photos,
	}
}

type CreateRequest struct {
	UserID string
	Name   string
	// ProviderAvatarID registers an existing provider avatar.
	ProviderAvatarID string
	IsPhoto          bool
	// Photo uploads a new talking photo.
	Photo       []byte
	ContentType string
	SetDefault  bool
}

func (m *Manager) List(ctx context.Context, userID string) ([]model.Avatar, error) {
	if m.resolver != nil {
		if n, err := m.resolver.Backfill(ctx, userID); err != nil {
			slog.Warn("Avatar kind backfill failed", "user_id", userID, "error", err)
		} else if n > 0 {
			slog.Info("Backfilled avatar kinds", "user_id", userID, "count", n)
		}
	}

	avatars, err := m.avatars.ListAvatars(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list avatars: %w", err)
	}
	return avatars, nil
}

func (m *Manager) Create(ctx context.Context, req CreateRequest) (*model.Avatar, error) {
	var (
		a   *model.Avatar
		err error
	)
	switch {
	case len(req.Photo) > 0:
		a, err = m.createFromPhoto(ctx, req)
	case req.ProviderAvatarID != "":
		kind := model.KindStandard
		if req.IsPhoto {
			kind = model.KindPhoto
		}
		a = &model.Avatar{
			UserID:         req.UserID,
			Name:           req.Name,
			HeyGenAvatarID: req.ProviderAvatarID,
			Source:         model.SourceSynced,
			Kind:           kind,
			Status:         model.AvatarActive,
		}
	default:
		return nil, fmt.Errorf("%w: a photo or provider avatar id is required", ErrInvalid)
	}
	if err != nil {
		return nil, err
	}

	existing, err := m.avatars.ListAvatars(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("list avatars: %w", err)
	}

	if err := m.avatars.InsertAvatar(ctx, a); err != nil {
		return nil, fmt.Errorf("save avatar: %w", err)
	}

	if req.SetDefault || len(existing) == 0 {
		if err := m.avatars.SetDefaultAvatar(ctx, req.UserID, a.ID); err != nil {
			return nil, fmt.Errorf("set default avatar: %w", err)
		}
		a.IsDefault = true
	}

	slog.Info("Avatar created", "avatar_id", a.ID, "user_id", a.UserID, "kind", a.Kind, "status", a.Status)
	return a, nil
}

func (m *Manager) createFromPhoto(ctx context.Context, req CreateRequest) (*model.Avatar, error) {
	if m.objects == nil {
		return nil, fmt.Errorf("%w: photo storage is not configured", ErrNotConfigured)
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	name := fmt.Sprintf("avatars/%s/%s%s", req.UserID, uuid.NewString(), extensionFor(contentType))

	url, err := m.objects.Put(ctx, name, bytes.NewReader(req.Photo), contentType)
	if err != nil {
		return nil, fmt.Errorf("store avatar photo: %w", err)
	}

	a := &model.Avatar{
		UserID:    req.UserID,
		Name:      req.Name,
		AvatarURL: url,
		Source:    model.SourceUserPhoto,
		Kind:      model.KindPhoto,
		Status:    model.AvatarPending,
	}

	if m.photos != nil {
		photo, err := m.photos.UploadTalkingPhoto(ctx, req.Photo, contentType)
		if err != nil {
			return nil, fmt.Errorf("register talking photo: %w", err)
		}
		a.HeyGenAvatarID = photo.ID
		a.PreviewURL = photo.PreviewURL
		a.Status = model.AvatarActive
	}
	return a, nil
}

func extensionFor(contentType string) string {
	if strings.HasSuffix(contentType, "/png") {
		return ".png"
	}
	if strings.HasSuffix(contentType, "/jpeg") {
		return ".jpg"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

func (m *Manager) SetDefault(ctx context.Context, userID, id string) error {
	err := m.avatars.SetDefaultAvatar(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

func (m *Manager) Delete(ctx context.Context, userID, id string) error {
	err := m.avatars.DeleteAvatar(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

type SyncResult struct {
	Imported int
	Updated  int
}

// Sync imports the provider account's avatars and talking photos for the user.
func (m *Manager) Sync(ctx context.Context, userID string) (*SyncResult, error) {
	if m.directory == nil {
		return nil, fmt.Errorf("%w: no avatar provider configured", ErrNotConfigured)
	}

	remote, err := m.directory.ListAvatars(ctx)
	if err != nil {
		return nil, fmt.Errorf("list provider avatars: %w", err)
	}

	result := &SyncResult{}
	for _, info := range remote {
		if info.ID == "" {
			continue
		}

		existing, err := m.avatars.FindAvatarByProviderID(ctx, userID, info.ID)
		switch {
		case err == nil:
			existing.Name = info.Name
			existing.PreviewURL = info.PreviewURL
			if err := m.avatars.UpdateAvatar(ctx, existing); err != nil {
				return result, fmt.Errorf("update avatar %s: %w", existing.ID, err)
			}
			result.Updated++
		case errors.Is(err, store.ErrNotFound):
			kind := model.KindStandard
			if info.IsPhoto {
				kind = model.KindPhoto
			}
			a := &model.Avatar{
				UserID:         userID,
				Name:           info.Name,
				HeyGenAvatarID: info.ID,
				HeyGenGroupID:  info.GroupID,
				PreviewURL:     info.PreviewURL,
				ThumbnailURL:   info.ThumbnailURL,
				Source:         model.SourceSynced,
				Kind:           kind,
				Status:         model.AvatarActive,
			}
			if err := m.avatars.InsertAvatar(ctx, a); err != nil {
				return result, fmt.Errorf("save avatar %s: %w", info.ID, err)
			}
			result.Imported++
		default:
			return result, fmt.Errorf("load avatar %s: %w", info.ID, err)
		}
	}

	slog.Info("Avatars synced", "user_id", userID, "imported", result.Imported, "updated", result.Updated)
	return result, nil
}
