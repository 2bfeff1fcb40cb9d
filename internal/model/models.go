package model

import "time"

type VideoStatus string

const (
	StatusPending    VideoStatus = "pending"
	StatusGenerating VideoStatus = "generating"
	StatusCompleted  VideoStatus = "completed"
	StatusFailed     VideoStatus = "failed"
)

// InFlight reports whether the provider may still change the status.
func (s VideoStatus) InFlight() bool {
	return s == StatusPending || s == StatusGenerating
}

type Style string

const (
	StyleCasual       Style = "casual"
	StyleProfessional Style = "professional"
	StyleEnergetic    Style = "energetic"
	StyleEducational  Style = "educational"
)

var Styles = []Style{StyleCasual, StyleProfessional, StyleEnergetic, StyleEducational}

func (s Style) Valid() bool {
	for _, style := range Styles {
		if s == style {
			return true
		}
	}
	return false
}

type VideoProvider string

const (
	ProviderHeyGen VideoProvider = "heygen"
	ProviderSora   VideoProvider = "sora"
)

func (p VideoProvider) Valid() bool {
	return p == ProviderHeyGen || p == ProviderSora
}

type Video struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	Topic         string        `json:"topic"`
	Script        *string       `json:"script"`
	Style         Style         `json:"style"`
	Duration      int           `json:"duration"`
	Status        VideoStatus   `json:"status"`
	VideoURL      *string       `json:"video_url"`
	HeyGenVideoID *string       `json:"heygen_video_id"`
	Provider      VideoProvider `json:"provider,omitempty"`
	AvatarID      *string       `json:"avatar_id"`
	TemplateID    string        `json:"template_id,omitempty"`
	AspectRatio   string        `json:"aspect_ratio,omitempty"`
	PlanItemID    *string       `json:"plan_item_id,omitempty"`
	ErrorMessage  *string       `json:"error_message"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	// ScriptGenerated marks a script written by the LLM rather than the requester.
	ScriptGenerated bool `json:"script_generated,omitempty"`
}

// ProviderID returns the provider task id, or "" before dispatch.
func (v *Video) ProviderID() string {
	if v.HeyGenVideoID == nil {
		return ""
	}
	return *v.HeyGenVideoID
}

func (v *Video) ScriptText() string {
	if v.Script == nil {
		return ""
	}
	return *v.Script
}

// RequestedScript is the script the requester submitted, "" when it was generated.
func (v *Video) RequestedScript() string {
	if v.ScriptGenerated {
		return ""
	}
	return v.ScriptText()
}

func (v *Video) AvatarRecordID() string {
	if v.AvatarID == nil {
		return ""
	}
	return *v.AvatarID
}

type AvatarSource string

const (
	SourceSynced      AvatarSource = "synced"
	SourceUserPhoto   AvatarSource = "user_photo"
	SourceAIGenerated AvatarSource = "ai_generated"
)

type AvatarKind string

const (
	KindUnknown  AvatarKind = ""
	KindStandard AvatarKind = "standard"
	KindPhoto    AvatarKind = "photo"
)

type AvatarStatus string

const (
	AvatarActive   AvatarStatus = "active"
	AvatarTraining AvatarStatus = "training"
	AvatarPending  AvatarStatus = "pending"
	AvatarFailed   AvatarStatus = "failed"
)

type Avatar struct {
	ID             string       `json:"id"`
	UserID         string       `json:"user_id"`
	Name           string       `json:"name"`
	HeyGenAvatarID string       `json:"heygen_avatar_id"`
	HeyGenGroupID  string       `json:"heygen_group_id,omitempty"`
	AvatarURL      string       `json:"avatar_url,omitempty"`
	PreviewURL     string       `json:"preview_url,omitempty"`
	ThumbnailURL   string       `json:"thumbnail_url,omitempty"`
	Source         AvatarSource `json:"source"`
	Kind           AvatarKind   `json:"kind"`
	Status         AvatarStatus `json:"status"`
	IsDefault      bool         `json:"is_default"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// StoredURL is the first non-empty image location recorded for the avatar.
func (a *Avatar) StoredURL() string {
	for _, u := range []string{a.AvatarURL, a.PreviewURL, a.ThumbnailURL} {
		if u != "" {
			return u
		}
	}
	return ""
}

type PlanItem struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	VideoID      *string     `json:"video_id"`
	Status       VideoStatus `json:"status"`
	ErrorMessage *string     `json:"error_message"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type AppSetting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserPreferences struct {
	UserID           string `json:"user_id"`
	VoiceID          string `json:"voice_id,omitempty"`
	OutputResolution string `json:"output_resolution,omitempty"`
	AspectRatio      string `json:"aspect_ratio,omitempty"`
}

func StringPtr(s string) *string {
	return &s
}
