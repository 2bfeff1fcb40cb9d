package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"contentfactory/internal/distribution"
	"contentfactory/internal/model"
)

const maxFileNameLength = 50

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

type Publication struct {
	Title       string
	Description string
	Tags        []string
	Privacy     string
}

// Publish uploads a completed render to the configured distribution platform.
func (s *Service) Publish(ctx context.Context, userID, videoID string, pub Publication) (*distribution.UploadResponse, error) {
	if s.uploader == nil {
		return nil, newError(KindConfiguration, "no distribution platform configured")
	}

	video, err := s.videos.GetVideo(ctx, userID, videoID)
	if err != nil {
		return nil, classify(err, "load video")
	}
	if video.Status != model.StatusCompleted || video.VideoURL == nil {
		return nil, newError(KindValidation, "only completed videos can be published, video is %s", video.Status)
	}

	sess, err := newSession(video)
	if err != nil {
		return nil, fmt.Errorf("create publish session: %w", err)
	}
	defer sess.cleanup()

	if err := s.downloadTo(ctx, *video.VideoURL, sess.videoPath()); err != nil {
		return nil, &Error{Kind: KindProvider, Msg: "download render", Err: err}
	}

	req := distribution.UploadRequest{
		FilePath:    sess.videoPath(),
		Title:       pub.Title,
		Description: pub.Description,
		Tags:        pub.Tags,
		Privacy:     pub.Privacy,
	}
	if req.Title == "" {
		req.Title = video.Topic
	}
	if len(req.Tags) == 0 {
		req.Tags = s.cfg.YouTube.DefaultTags
	}
	if req.Privacy == "" {
		req.Privacy = s.cfg.YouTube.PrivacyStatus
	}

	resp, err := s.uploader.Upload(ctx, req)
	if err != nil {
		return nil, &Error{Kind: KindProvider, Msg: "upload to " + s.uploader.Platform(), Err: err}
	}
	slog.Info("Video published", "video_id", video.ID, "platform", resp.Platform, "url", resp.URL)
	return resp, nil
}

func (s *Service) downloadTo(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.download.Do(req)
	if err != nil {
		return fmt.Errorf("fetch video: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch video: status %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return writeAndClose(f, resp.Body)
}

// writeAndClose reports a failed Close, since a short flush leaves a truncated file.
func writeAndClose(w io.WriteCloser, r io.Reader) error {
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write video: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close video file: %w", err)
	}
	return nil
}

// session is a scratch directory holding one downloaded render.
type session struct {
	dir  string
	name string
}

func newSession(video *model.Video) (*session, error) {
	dir, err := os.MkdirTemp("", "contentfactory-publish-*")
	if err != nil {
		return nil, err
	}

	name := sanitizeForPath(video.Topic)
	if name == "" {
		name = "untitled"
	}
	if len(name) > maxFileNameLength {
		name = name[:maxFileNameLength]
	}
	return &session{dir: dir, name: name}, nil
}

func (s *session) videoPath() string { return filepath.Join(s.dir, s.name+".mp4") }

func (s *session) cleanup() {
	if err := os.RemoveAll(s.dir); err != nil {
		slog.Warn("Could not remove publish session", "dir", s.dir, "error", err)
	}
}

func sanitizeForPath(s string) string {
	s = strings.ToLower(s)
	s = sanitizeRegex.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
