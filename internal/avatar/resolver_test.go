package avatar

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"contentfactory/internal/model"
	"contentfactory/internal/provider"
	"contentfactory/internal/store/memory"
)

type ownedPrefix string

func (p ownedPrefix) IsOwnedURL(url string) bool {
	return strings.HasPrefix(url, string(p))
}

type fakeDirectory struct {
	groups  map[string][]provider.AvatarInfo
	avatars []provider.AvatarInfo
	calls   int
}

func (f *fakeDirectory) ListGroupAvatars(_ context.Context, groupID string) ([]provider.AvatarInfo, error) {
	f.calls++
	members, ok := f.groups[groupID]
	if !ok {
		return nil, errors.New("group not found")
	}
	return members, nil
}

func (f *fakeDirectory) ListAvatars(context.Context) ([]provider.AvatarInfo, error) {
	return f.avatars, nil
}

func seed(t *testing.T, s *memory.Store, avatars ...*model.Avatar) {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, a := range avatars {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		}
		if err := s.InsertAvatar(context.Background(), a); err != nil {
			t.Fatalf("InsertAvatar: %v", err)
		}
	}
}

func TestResolveWithoutRequest(t *testing.T) {
	tests := []struct {
		name        string
		avatars     []*model.Avatar
		expectedID  string
		expectedErr error
	}{
		{
			name: "defaultWins",
			avatars: []*model.Avatar{
				{UserID: "u1", HeyGenAvatarID: "active", Status: model.AvatarActive, Kind: model.KindStandard},
				{UserID: "u1", HeyGenAvatarID: "default", Status: model.AvatarTraining, IsDefault: true, Kind: model.KindStandard},
			},
			expectedID: "default",
		},
		{
			name: "firstActive",
			avatars: []*model.Avatar{
				{UserID: "u1", HeyGenAvatarID: "training", Status: model.AvatarTraining, Kind: model.KindStandard},
				{UserID: "u1", HeyGenAvatarID: "active-1", Status: model.AvatarActive, Kind: model.KindStandard},
				{UserID: "u1", HeyGenAvatarID: "active-2", Status: model.AvatarActive, Kind: model.KindStandard},
			},
			expectedID: "active-1",
		},
		{
			name: "nothingUsable",
			avatars: []*model.Avatar{
				{UserID: "u1", HeyGenAvatarID: "training", Status: model.AvatarTraining},
				{UserID: "u2", HeyGenAvatarID: "other", Status: model.AvatarActive, IsDefault: true},
			},
			expectedErr: ErrNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memory.New()
			seed(t, s, tt.avatars...)

			got, err := NewResolver(s, nil, nil).Resolve(context.Background(), "u1", "")
			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Fatalf("expected %v, got %v", tt.expectedErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got.AvatarID != tt.expectedID {
				t.Errorf("AvatarID = %q, want %q", got.AvatarID, tt.expectedID)
			}
		})
	}
}

func TestResolveRequested(t *testing.T) {
	s := memory.New()
	own := &model.Avatar{UserID: "u1", HeyGenAvatarID: "heygen-1", Status: model.AvatarActive, Kind: model.KindStandard}
	foreign := &model.Avatar{UserID: "u2", HeyGenAvatarID: "heygen-2", Status: model.AvatarActive, Kind: model.KindStandard}
	seed(t, s, own, foreign)
	r := NewResolver(s, nil, nil)

	t.Run("byRecordID", func(t *testing.T) {
		got, err := r.Resolve(context.Background(), "u1", own.ID)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got.AvatarID != "heygen-1" || got.AvatarRecordID != own.ID {
			t.Errorf("unexpected context %+v", got)
		}
	})

	t.Run("byProviderID", func(t *testing.T) {
		got, err := r.Resolve(context.Background(), "u1", "heygen-1")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got.AvatarRecordID != own.ID {
			t.Errorf("AvatarRecordID = %q", got.AvatarRecordID)
		}
	})

	t.Run("otherUsersRecord", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "u1", foreign.ID)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("otherUsersProviderID", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "u1", "heygen-2")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestIsPhoto(t *testing.T) {
	owner := ownedPrefix("https://storage.googleapis.com/cf-bucket/")

	tests := []struct {
		name     string
		avatar   model.Avatar
		expected bool
	}{
		{name: "storedPhotoKind", avatar: model.Avatar{Kind: model.KindPhoto, Source: model.SourceSynced}, expected: true},
		{name: "storedStandardKindBeatsSource", avatar: model.Avatar{Kind: model.KindStandard, Source: model.SourceUserPhoto}, expected: false},
		{name: "userPhotoSource", avatar: model.Avatar{Source: model.SourceUserPhoto}, expected: true},
		{name: "aiGeneratedSource", avatar: model.Avatar{Source: model.SourceAIGenerated}, expected: true},
		{name: "ownedURL", avatar: model.Avatar{Source: model.SourceSynced, ThumbnailURL: "https://storage.googleapis.com/cf-bucket/avatars/x.jpg"}, expected: true},
		{name: "foreignURL", avatar: model.Avatar{Source: model.SourceSynced, PreviewURL: "https://files.heygen.ai/x.jpg"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPhoto(&tt.avatar, owner); got != tt.expected {
				t.Errorf("IsPhoto() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestResolvePersistsLegacyKind(t *testing.T) {
	s := memory.New()
	legacy := &model.Avatar{UserID: "u1", HeyGenAvatarID: "tp-1", Status: model.AvatarActive, IsDefault: true,
		Source: model.SourceSynced, AvatarURL: "https://cdn.example.com/uploads/me.jpg"}
	seed(t, s, legacy)

	got, err := NewResolver(s, ownedPrefix("https://cdn.example.com/uploads/"), nil).Resolve(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !got.IsPhoto {
		t.Error("expected photo avatar from owned URL")
	}

	stored, _ := s.GetAvatar(context.Background(), "u1", legacy.ID)
	if stored.Kind != model.KindPhoto {
		t.Errorf("stored kind = %q, want photo", stored.Kind)
	}
}

func TestResolveGroupMember(t *testing.T) {
	s := memory.New()
	grouped := &model.Avatar{UserID: "u1", HeyGenGroupID: "grp-1", Status: model.AvatarActive, IsDefault: true,
		Source: model.SourceAIGenerated, Kind: model.KindPhoto}
	seed(t, s, grouped)

	dir := &fakeDirectory{groups: map[string][]provider.AvatarInfo{
		"grp-1": {
			{ID: "look-pending", Status: "pending"},
			{ID: "look-done", Status: "COMPLETED"},
		},
	}}

	got, err := NewResolver(s, nil, dir).Resolve(context.Background(), "u1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.AvatarID != "look-done" || !got.IsPhoto {
		t.Errorf("unexpected context %+v", got)
	}
	if dir.calls != 1 {
		t.Errorf("expected one group lookup, got %d", dir.calls)
	}
}

func TestResolveGroupWithoutDirectory(t *testing.T) {
	s := memory.New()
	seed(t, s, &model.Avatar{UserID: "u1", HeyGenGroupID: "grp-1", Status: model.AvatarActive, Kind: model.KindPhoto})

	_, err := NewResolver(s, nil, nil).Resolve(context.Background(), "u1", "")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestBackfill(t *testing.T) {
	s := memory.New()
	seed(t, s,
		&model.Avatar{UserID: "u1", Source: model.SourceUserPhoto},
		&model.Avatar{UserID: "u1", Source: model.SourceSynced},
		&model.Avatar{UserID: "u1", Source: model.SourceSynced, Kind: model.KindPhoto},
	)

	n, err := NewResolver(s, nil, nil).Backfill(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if n != 2 {
		t.Errorf("updated %d, want 2", n)
	}

	avatars, _ := s.ListAvatars(context.Background(), "u1")
	for _, a := range avatars {
		if a.Kind == model.KindUnknown {
			t.Errorf("avatar %s left without kind", a.ID)
		}
	}
	if avatars[0].Kind != model.KindPhoto || avatars[1].Kind != model.KindStandard {
		t.Errorf("unexpected kinds %s %s", avatars[0].Kind, avatars[1].Kind)
	}
}
