package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"contentfactory/internal/model"
	"contentfactory/internal/store"
)

//go:embed schema.sql
var schema string

var _ store.Store = (*Store)(nil)

type Store struct {
	db *pgxpool.Pool
}

const connectAttempts = 10

// Open connects to databaseURL, retrying while the database comes up.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	var lastErr error
	for i := 0; i < connectAttempts; i++ {
		pool, err := pgxpool.New(ctx, databaseURL)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return &Store{db: pool}, nil
			}
			pool.Close()
		}
		lastErr = err
		slog.Warn("Waiting for database", "attempt", i+1, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("connect database: %w", lastErr)
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const videoColumns = `id, user_id, topic, script, script_generated, style, duration, status, video_url, heygen_video_id,
	provider, avatar_id, template_id, aspect_ratio, plan_item_id, error_message, created_at, updated_at`

func scanVideo(row pgx.Row) (*model.Video, error) {
	var v model.Video
	err := row.Scan(&v.ID, &v.UserID, &v.Topic, &v.Script, &v.ScriptGenerated, &v.Style, &v.Duration, &v.Status,
		&v.VideoURL, &v.HeyGenVideoID, &v.Provider, &v.AvatarID, &v.TemplateID, &v.AspectRatio,
		&v.PlanItemID, &v.ErrorMessage, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) queryVideos(ctx context.Context, query string, args ...any) ([]model.Video, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []model.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}

func (s *Store) InsertVideo(ctx context.Context, v *model.Video) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO videos (id, user_id, topic, script, script_generated, style, duration, status, video_url,
			heygen_video_id, provider, avatar_id, template_id, aspect_ratio, plan_item_id, error_message,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW())
		RETURNING updated_at
	`
	err := s.db.QueryRow(ctx, query, v.ID, v.UserID, v.Topic, v.Script, v.ScriptGenerated, v.Style, v.Duration, v.Status,
		v.VideoURL, v.HeyGenVideoID, v.Provider, v.AvatarID, v.TemplateID, v.AspectRatio, v.PlanItemID,
		v.ErrorMessage, v.CreatedAt).Scan(&v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

func (s *Store) GetVideo(ctx context.Context, userID, id string) (*model.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1 AND user_id = $2`
	return scanVideo(s.db.QueryRow(ctx, query, id, userID))
}

func (s *Store) GetVideoByID(ctx context.Context, id string) (*model.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`
	return scanVideo(s.db.QueryRow(ctx, query, id))
}

func (s *Store) ListVideos(ctx context.Context, userID string) ([]model.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE user_id = $1 ORDER BY created_at DESC`
	return s.queryVideos(ctx, query, userID)
}

func (s *Store) FindRecentVideos(ctx context.Context, f store.VideoFilter) ([]model.Video, error) {
	statuses := make([]string, len(f.Statuses))
	for i, st := range f.Statuses {
		statuses[i] = string(st)
	}

	query := `SELECT ` + videoColumns + ` FROM videos
		WHERE user_id = $1 AND topic = $2 AND style = $3 AND duration = $4 AND created_at >= $5
		AND (cardinality($6::text[]) = 0 OR status = ANY($6::text[]))
		ORDER BY created_at DESC`
	return s.queryVideos(ctx, query, f.UserID, f.Topic, f.Style, f.Duration, f.Since, statuses)
}

func (s *Store) ListInFlightVideos(ctx context.Context, updatedBefore time.Time) ([]model.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos
		WHERE status IN ('pending', 'generating') AND heygen_video_id IS NOT NULL AND heygen_video_id <> ''
		AND updated_at < $1
		ORDER BY updated_at ASC`
	return s.queryVideos(ctx, query, updatedBefore)
}

func (s *Store) UpdateVideo(ctx context.Context, v *model.Video) error {
	query := `
		UPDATE videos
		SET script = $1, status = $2, video_url = $3, heygen_video_id = $4, provider = $5, avatar_id = $6,
			template_id = $7, aspect_ratio = $8, error_message = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at
	`
	err := s.db.QueryRow(ctx, query, v.Script, v.Status, v.VideoURL, v.HeyGenVideoID, v.Provider, v.AvatarID,
		v.TemplateID, v.AspectRatio, v.ErrorMessage, v.ID).Scan(&v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	return nil
}

func (s *Store) DeleteVideo(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM videos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const avatarColumns = `id, user_id, name, heygen_avatar_id, heygen_group_id, avatar_url, preview_url,
	thumbnail_url, source, kind, status, is_default, created_at, updated_at`

func scanAvatar(row pgx.Row) (*model.Avatar, error) {
	var a model.Avatar
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.HeyGenAvatarID, &a.HeyGenGroupID, &a.AvatarURL,
		&a.PreviewURL, &a.ThumbnailURL, &a.Source, &a.Kind, &a.Status, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) InsertAvatar(ctx context.Context, a *model.Avatar) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	query := `
		INSERT INTO avatars (id, user_id, name, heygen_avatar_id, heygen_group_id, avatar_url, preview_url,
			thumbnail_url, source, kind, status, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRow(ctx, query, a.ID, a.UserID, a.Name, a.HeyGenAvatarID, a.HeyGenGroupID, a.AvatarURL,
		a.PreviewURL, a.ThumbnailURL, a.Source, a.Kind, a.Status, a.IsDefault).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert avatar: %w", err)
	}
	return nil
}

func (s *Store) GetAvatar(ctx context.Context, userID, id string) (*model.Avatar, error) {
	query := `SELECT ` + avatarColumns + ` FROM avatars WHERE id = $1 AND user_id = $2`
	return scanAvatar(s.db.QueryRow(ctx, query, id, userID))
}

func (s *Store) FindAvatarByProviderID(ctx context.Context, userID, providerID string) (*model.Avatar, error) {
	query := `SELECT ` + avatarColumns + ` FROM avatars
		WHERE user_id = $1 AND heygen_avatar_id = $2 ORDER BY created_at ASC LIMIT 1`
	return scanAvatar(s.db.QueryRow(ctx, query, userID, providerID))
}

func (s *Store) DefaultAvatar(ctx context.Context, userID string) (*model.Avatar, error) {
	query := `SELECT ` + avatarColumns + ` FROM avatars
		WHERE user_id = $1 AND is_default ORDER BY created_at ASC LIMIT 1`
	return scanAvatar(s.db.QueryRow(ctx, query, userID))
}

func (s *Store) FirstActiveAvatar(ctx context.Context, userID string) (*model.Avatar, error) {
	query := `SELECT ` + avatarColumns + ` FROM avatars
		WHERE user_id = $1 AND status = 'active' ORDER BY created_at ASC LIMIT 1`
	return scanAvatar(s.db.QueryRow(ctx, query, userID))
}

func (s *Store) ListAvatars(ctx context.Context, userID string) ([]model.Avatar, error) {
	query := `SELECT ` + avatarColumns + ` FROM avatars WHERE user_id = $1 ORDER BY created_at ASC`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var avatars []model.Avatar
	for rows.Next() {
		a, err := scanAvatar(rows)
		if err != nil {
			return nil, err
		}
		avatars = append(avatars, *a)
	}
	return avatars, rows.Err()
}

func (s *Store) UpdateAvatar(ctx context.Context, a *model.Avatar) error {
	query := `
		UPDATE avatars
		SET name = $1, heygen_avatar_id = $2, heygen_group_id = $3, avatar_url = $4, preview_url = $5,
			thumbnail_url = $6, source = $7, kind = $8, status = $9, is_default = $10, updated_at = NOW()
		WHERE id = $11
		RETURNING updated_at
	`
	err := s.db.QueryRow(ctx, query, a.Name, a.HeyGenAvatarID, a.HeyGenGroupID, a.AvatarURL, a.PreviewURL,
		a.ThumbnailURL, a.Source, a.Kind, a.Status, a.IsDefault, a.ID).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return nil
}

func (s *Store) SetDefaultAvatar(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE avatars SET is_default = (id = $2), updated_at = NOW()
		WHERE user_id = $1 AND (is_default OR id = $2)
		AND EXISTS (SELECT 1 FROM avatars WHERE id = $2 AND user_id = $1)
	`, userID, id)
	if err != nil {
		return fmt.Errorf("set default avatar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAvatar(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM avatars WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete avatar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) InsertPlanItem(ctx context.Context, p *model.PlanItem) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO video_plan_items (id, user_id, video_id, status, error_message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING updated_at
	`, p.ID, p.UserID, p.VideoID, p.Status, p.ErrorMessage).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert plan item: %w", err)
	}
	return nil
}

func (s *Store) GetPlanItem(ctx context.Context, id string) (*model.PlanItem, error) {
	var p model.PlanItem
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, video_id, status, error_message, updated_at FROM video_plan_items WHERE id = $1
	`, id).Scan(&p.ID, &p.UserID, &p.VideoID, &p.Status, &p.ErrorMessage, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdatePlanItem(ctx context.Context, p *model.PlanItem) error {
	err := s.db.QueryRow(ctx, `
		UPDATE video_plan_items SET video_id = $1, status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`, p.VideoID, p.Status, p.ErrorMessage, p.ID).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update plan item: %w", err)
	}
	return nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (*model.AppSetting, error) {
	var setting model.AppSetting
	err := s.db.QueryRow(ctx, `SELECT key, value, updated_at FROM app_settings WHERE key = $1`, key).
		Scan(&setting.Key, &setting.Value, &setting.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (s *Store) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO app_settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) GetPreferences(ctx context.Context, userID string) (*model.UserPreferences, error) {
	var p model.UserPreferences
	err := s.db.QueryRow(ctx, `
		SELECT user_id, voice_id, output_resolution, aspect_ratio FROM user_preferences WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.VoiceID, &p.OutputResolution, &p.AspectRatio)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpsertPreferences(ctx context.Context, p *model.UserPreferences) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_preferences (user_id, voice_id, output_resolution, aspect_ratio)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET voice_id = EXCLUDED.voice_id,
			output_resolution = EXCLUDED.output_resolution, aspect_ratio = EXCLUDED.aspect_ratio
	`, p.UserID, p.VoiceID, p.OutputResolution, p.AspectRatio)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}
