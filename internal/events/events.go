package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"contentfactory/internal/model"
)

const DefaultSubject = "videos.status"

type StatusEvent struct {
	VideoID      string            `json:"video_id"`
	UserID       string            `json:"user_id"`
	Status       model.VideoStatus `json:"status"`
	Provider     string            `json:"provider,omitempty"`
	ProviderID   string            `json:"provider_id,omitempty"`
	VideoURL     string            `json:"video_url,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// NewStatusEvent snapshots the status-related fields of a video.
func NewStatusEvent(v *model.Video, at time.Time) StatusEvent {
	e := StatusEvent{
		VideoID:    v.ID,
		UserID:     v.UserID,
		Status:     v.Status,
		Provider:   string(v.Provider),
		ProviderID: v.ProviderID(),
		OccurredAt: at,
	}
	if v.VideoURL != nil {
		e.VideoURL = *v.VideoURL
	}
	if v.ErrorMessage != nil {
		e.ErrorMessage = *v.ErrorMessage
	}
	return e
}

type Publisher interface {
	VideoStatusChanged(ctx context.Context, event StatusEvent) error
	Close() error
}

type Noop struct{}

func (Noop) VideoStatusChanged(context.Context, StatusEvent) error { return nil }
func (Noop) Close() error                                          { return nil }

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

type NATSPublisher struct {
	conn    conn
	subject string
}

func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("contentfactory"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: nc, subject: subject}, nil
}

func (p *NATSPublisher) VideoStatusChanged(_ context.Context, event StatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}
	slog.Debug("Published status event", "subject", p.subject, "video_id", event.VideoID, "status", event.Status)
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// New returns a NATS publisher, or Noop when url is empty.
func New(url, subject string) (Publisher, error) {
	if url == "" {
		return Noop{}, nil
	}
	return NewNATSPublisher(url, subject)
}
