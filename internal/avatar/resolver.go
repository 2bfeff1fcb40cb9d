package avatar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"contentfactory/internal/model"
	"contentfactory/internal/provider"
	"contentfactory/internal/store"
)

var (
	ErrNotConfigured = errors.New("no avatar configured")
	ErrNotFound      = errors.New("avatar not found")
	ErrInvalid       = errors.New("invalid avatar")
)

// URLOwner reports whether a URL points into the application's own object storage.
type URLOwner interface {
	IsOwnedURL(url string) bool
}

// Context is what payload builders need to know about the chosen avatar.
type Context struct {
	AvatarID       string
	AvatarRecordID string
	IsPhoto        bool
}

type Resolver struct {
	avatars   store.AvatarStore
	owner     URLOwner
	directory provider.AvatarDirectory
}

// NewResolver builds a resolver. owner and directory may be nil.
func NewResolver(avatars store.AvatarStore, owner URLOwner, directory provider.AvatarDirectory) *Resolver {
	return &Resolver{avatars: avatars, owner: owner, directory: directory}
}

// Resolve picks the avatar for a render. With no requested id it uses the user's default,
// then the first active avatar. A requested id is matched against record ids first and
// provider ids second, both scoped to the user.
func (r *Resolver) Resolve(ctx context.Context, userID, requestedID string) (*Context, error) {
	var (
		a   *model.Avatar
		err error
	)
	if requestedID == "" {
		a, err = r.fallback(ctx, userID)
	} else {
		a, err = r.lookup(ctx, userID, requestedID)
	}
	if err != nil {
		return nil, err
	}
	return r.contextFor(ctx, a)
}

func (r *Resolver) fallback(ctx context.Context, userID string) (*model.Avatar, error) {
	a, err := r.avatars.DefaultAvatar(ctx, userID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load default avatar: %w", err)
	}

	a, err = r.avatars.FirstActiveAvatar(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("load active avatar: %w", err)
	}
	return a, nil
}

func (r *Resolver) lookup(ctx context.Context, userID, requestedID string) (*model.Avatar, error) {
	a, err := r.avatars.GetAvatar(ctx, userID, requestedID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load avatar %s: %w", requestedID, err)
	}

	a, err = r.avatars.FindAvatarByProviderID(ctx, userID, requestedID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requestedID)
	}
	if err != nil {
		return nil, fmt.Errorf("load avatar %s: %w", requestedID, err)
	}
	return a, nil
}

func (r *Resolver) contextFor(ctx context.Context, a *model.Avatar) (*Context, error) {
	if a.Kind == model.KindUnknown {
		r.backfillOne(ctx, a)
	}

	providerID := a.HeyGenAvatarID
	if providerID == "" && a.HeyGenGroupID != "" {
		id, err := r.groupMember(ctx, a.HeyGenGroupID)
		if err != nil {
			return nil, err
		}
		providerID = id
	}
	if providerID == "" {
		return nil, fmt.Errorf("%w: avatar %s has no provider id", ErrNotConfigured, a.ID)
	}

	return &Context{
		AvatarID:       providerID,
		AvatarRecordID: a.ID,
		IsPhoto:        IsPhoto(a, r.owner),
	}, nil
}

// groupMember returns the representative look of a photo avatar group: the first
// completed member, else the first member.
func (r *Resolver) groupMember(ctx context.Context, groupID string) (string, error) {
	if r.directory == nil {
		return "", fmt.Errorf("%w: avatar group %s cannot be looked up", ErrNotConfigured, groupID)
	}

	members, err := r.directory.ListGroupAvatars(ctx, groupID)
	if err != nil {
		return "", fmt.Errorf("look up avatar group %s: %w", groupID, err)
	}
	if len(members) == 0 {
		return "", fmt.Errorf("%w: avatar group %s has no looks", ErrNotConfigured, groupID)
	}

	member, ok := lo.Find(members, func(m provider.AvatarInfo) bool {
		return strings.EqualFold(m.Status, "completed")
	})
	if !ok {
		member = members[0]
	}
	return member.ID, nil
}

// IsPhoto reports whether the avatar renders as a talking photo. The stored kind wins;
// rows without one fall back to source and then to where the image is hosted.
func IsPhoto(a *model.Avatar, owner URLOwner) bool {
	switch a.Kind {
	case model.KindPhoto:
		return true
	case model.KindStandard:
		return false
	}
	return DecideKind(a, owner) == model.KindPhoto
}

// DecideKind classifies an avatar without looking at its stored kind.
func DecideKind(a *model.Avatar, owner URLOwner) model.AvatarKind {
	if a.Source == model.SourceUserPhoto || a.Source == model.SourceAIGenerated {
		return model.KindPhoto
	}
	if owner != nil {
		urls := lo.Compact([]string{a.AvatarURL, a.PreviewURL, a.ThumbnailURL})
		if lo.SomeBy(urls, owner.IsOwnedURL) {
			return model.KindPhoto
		}
	}
	return model.KindStandard
}

func (r *Resolver) backfillOne(ctx context.Context, a *model.Avatar) {
	a.Kind = DecideKind(a, r.owner)
	if err := r.avatars.UpdateAvatar(ctx, a); err != nil {
		slog.Warn("Failed to persist avatar kind", "avatar_id", a.ID, "error", err)
	}
}

// Backfill stores a kind on every legacy avatar of the user. It returns the number of rows updated.
func (r *Resolver) Backfill(ctx context.Context, userID string) (int, error) {
	avatars, err := r.avatars.ListAvatars(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list avatars: %w", err)
	}

	updated := 0
	for _, a := range avatars {
		if a.Kind != model.KindUnknown {
			continue
		}
		a.Kind = DecideKind(&a, r.owner)
		if err := r.avatars.UpdateAvatar(ctx, &a); err != nil {
			return updated, fmt.Errorf("update avatar %s: %w", a.ID, err)
		}
		updated++
	}
	return updated, nil
}
