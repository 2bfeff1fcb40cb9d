// Package memory is a mutex guarded Store for tests and single-node local use.
// When a data file is given, every write is mirrored to it as JSON.
package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"contentfactory/internal/model"
	"contentfactory/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	dataFile string
	now      func() time.Time

	videos    map[string]model.Video
	avatars   map[string]model.Avatar
	planItems map[string]model.PlanItem
	settings  map[string]model.AppSetting
	prefs     map[string]model.UserPreferences
}

type snapshot struct {
	Videos    []model.Video           `json:"videos"`
	Avatars   []model.Avatar          `json:"avatars"`
	PlanItems []model.PlanItem        `json:"plan_items"`
	Settings  []model.AppSetting      `json:"settings"`
	Prefs     []model.UserPreferences `json:"user_preferences"`
}

func New() *Store {
	return &Store{
		now:       time.Now,
		videos:    make(map[string]model.Video),
		avatars:   make(map[string]model.Avatar),
		planItems: make(map[string]model.PlanItem),
		settings:  make(map[string]model.AppSetting),
		prefs:     make(map[string]model.UserPreferences),
	}
}

// Open returns a store persisted to dataFile, loading any existing snapshot.
func Open(dataFile string) *Store {
	s := New()
	s.dataFile = dataFile
	s.load()
	return s
}

// WithClock overrides the time source used for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) InsertVideo(_ context.Context, video *model.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if video.ID == "" {
		video.ID = uuid.NewString()
	}
	if video.CreatedAt.IsZero() {
		video.CreatedAt = now
	}
	video.UpdatedAt = now

	s.videos[video.ID] = cloneVideo(*video)
	s.save()
	return nil
}

func (s *Store) GetVideo(_ context.Context, userID, id string) (*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.videos[id]
	if !ok || v.UserID != userID {
		return nil, store.ErrNotFound
	}
	out := cloneVideo(v)
	return &out, nil
}

func (s *Store) GetVideoByID(_ context.Context, id string) (*model.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.videos[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneVideo(v)
	return &out, nil
}

func (s *Store) ListVideos(_ context.Context, userID string) ([]model.Video, error) {
	return s.filterVideos(func(v model.Video) bool { return v.UserID == userID }), nil
}

func (s *Store) FindRecentVideos(_ context.Context, f store.VideoFilter) ([]model.Video, error) {
	return s.filterVideos(func(v model.Video) bool {
		return v.UserID == f.UserID &&
			v.Topic == f.Topic &&
			v.Style == f.Style &&
			v.Duration == f.Duration &&
			!v.CreatedAt.Before(f.Since) &&
			(len(f.Statuses) == 0 || slices.Contains(f.Statuses, v.Status))
	}), nil
}

func (s *Store) ListInFlightVideos(_ context.Context, updatedBefore time.Time) ([]model.Video, error) {
	return s.filterVideos(func(v model.Video) bool {
		return v.Status.InFlight() && v.ProviderID() != "" && v.UpdatedAt.Before(updatedBefore)
	}), nil
}

func (s *Store) UpdateVideo(_ context.Context, video *model.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[video.ID]; !ok {
		return store.ErrNotFound
	}
	video.UpdatedAt = s.now()
	s.videos[video.ID] = cloneVideo(*video)
	s.save()
	return nil
}

func (s *Store) DeleteVideo(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok || v.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.videos, id)
	s.save()
	return nil
}

func (s *Store) filterVideos(keep func(model.Video) bool) []model.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Video
	for _, v := range s.videos {
		if keep(v) {
			out = append(out, cloneVideo(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) InsertAvatar(_ context.Context, avatar *model.Avatar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if avatar.ID == "" {
		avatar.ID = uuid.NewString()
	}
	if avatar.CreatedAt.IsZero() {
		avatar.CreatedAt = now
	}
	avatar.UpdatedAt = now

	s.avatars[avatar.ID] = *avatar
	s.save()
	return nil
}

func (s *Store) GetAvatar(_ context.Context, userID, id string) (*model.Avatar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.avatars[id]
	if !ok || a.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *Store) FindAvatarByProviderID(_ context.Context, userID, providerID string) (*model.Avatar, error) {
	return s.firstAvatar(func(a model.Avatar) bool {
		return a.UserID == userID && a.HeyGenAvatarID == providerID
	})
}

func (s *Store) DefaultAvatar(_ context.Context, userID string) (*model.Avatar, error) {
	return s.firstAvatar(func(a model.Avatar) bool { return a.UserID == userID && a.IsDefault })
}

func (s *Store) FirstActiveAvatar(_ context.Context, userID string) (*model.Avatar, error) {
	return s.firstAvatar(func(a model.Avatar) bool {
		return a.UserID == userID && a.Status == model.AvatarActive
	})
}

func (s *Store) ListAvatars(_ context.Context, userID string) ([]model.Avatar, error) {
	return s.filterAvatars(func(a model.Avatar) bool { return a.UserID == userID }), nil
}

func (s *Store) UpdateAvatar(_ context.Context, avatar *model.Avatar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.avatars[avatar.ID]; !ok {
		return store.ErrNotFound
	}
	avatar.UpdatedAt = s.now()
	s.avatars[avatar.ID] = *avatar
	s.save()
	return nil
}

func (s *Store) SetDefaultAvatar(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.avatars[id]
	if !ok || target.UserID != userID {
		return store.ErrNotFound
	}

	now := s.now()
	for key, a := range s.avatars {
		if a.UserID != userID {
			continue
		}
		isTarget := key == id
		if a.IsDefault != isTarget {
			a.IsDefault = isTarget
			a.UpdatedAt = now
			s.avatars[key] = a
		}
	}
	s.save()
	return nil
}

func (s *Store) DeleteAvatar(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.avatars[id]
	if !ok || a.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.avatars, id)
	s.save()
	return nil
}

// firstAvatar returns the oldest avatar matching keep.
func (s *Store) firstAvatar(keep func(model.Avatar) bool) (*model.Avatar, error) {
	avatars := s.filterAvatars(keep)
	if len(avatars) == 0 {
		return nil, store.ErrNotFound
	}
	return &avatars[0], nil
}

func (s *Store) filterAvatars(keep func(model.Avatar) bool) []model.Avatar {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Avatar
	for _, a := range s.avatars {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) InsertPlanItem(_ context.Context, item *model.PlanItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.UpdatedAt = s.now()
	s.planItems[item.ID] = clonePlanItem(*item)
	s.save()
	return nil
}

func (s *Store) GetPlanItem(_ context.Context, id string) (*model.PlanItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.planItems[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := clonePlanItem(item)
	return &out, nil
}

func (s *Store) UpdatePlanItem(_ context.Context, item *model.PlanItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.planItems[item.ID]; !ok {
		return store.ErrNotFound
	}
	item.UpdatedAt = s.now()
	s.planItems[item.ID] = clonePlanItem(*item)
	s.save()
	return nil
}

func (s *Store) GetSetting(_ context.Context, key string) (*model.AppSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	setting, ok := s.settings[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &setting, nil
}

func (s *Store) UpsertSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[key] = model.AppSetting{Key: key, Value: value, UpdatedAt: s.now()}
	s.save()
	return nil
}

func (s *Store) GetPreferences(_ context.Context, userID string) (*model.UserPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefs, ok := s.prefs[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &prefs, nil
}

func (s *Store) UpsertPreferences(_ context.Context, prefs *model.UserPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs[prefs.UserID] = *prefs
	s.save()
	return nil
}

func (s *Store) load() {
	data, err := os.ReadFile(s.dataFile)
	if err != nil {
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("Ignoring unreadable store snapshot", "path", s.dataFile, "error", err)
		return
	}

	for _, v := range snap.Videos {
		s.videos[v.ID] = v
	}
	for _, a := range snap.Avatars {
		s.avatars[a.ID] = a
	}
	for _, p := range snap.PlanItems {
		s.planItems[p.ID] = p
	}
	for _, setting := range snap.Settings {
		s.settings[setting.Key] = setting
	}
	for _, p := range snap.Prefs {
		s.prefs[p.UserID] = p
	}
}

// save must be called with the write lock held.
func (s *Store) save() {
	if s.dataFile == "" {
		return
	}

	snap := snapshot{}
	for _, v := range s.videos {
		snap.Videos = append(snap.Videos, v)
	}
	for _, a := range s.avatars {
		snap.Avatars = append(snap.Avatars, a)
	}
	for _, p := range s.planItems {
		snap.PlanItems = append(snap.PlanItems, p)
	}
	for _, setting := range s.settings {
		snap.Settings = append(snap.Settings, setting)
	}
	for _, p := range s.prefs {
		snap.Prefs = append(snap.Prefs, p)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		slog.Warn("Failed to encode store snapshot", "error", err)
		return
	}

	_ = os.MkdirAll(filepath.Dir(s.dataFile), 0755)
	if err := os.WriteFile(s.dataFile, data, 0644); err != nil {
		slog.Warn("Failed to write store snapshot", "path", s.dataFile, "error", err)
	}
}

func cloneVideo(v model.Video) model.Video {
	v.Script = cloneString(v.Script)
	v.VideoURL = cloneString(v.VideoURL)
	v.HeyGenVideoID = cloneString(v.HeyGenVideoID)
	v.AvatarID = cloneString(v.AvatarID)
	v.PlanItemID = cloneString(v.PlanItemID)
	v.ErrorMessage = cloneString(v.ErrorMessage)
	return v
}

func clonePlanItem(p model.PlanItem) model.PlanItem {
	p.VideoID = cloneString(p.VideoID)
	p.ErrorMessage = cloneString(p.ErrorMessage)
	return p
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
