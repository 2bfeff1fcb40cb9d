// Package payload shapes HeyGen request bodies from video parameters.
// Everything here is pure; callers do the I/O.
package payload

import (
	"maps"
	"sort"

	"github.com/samber/lo"

	"contentfactory/internal/model"
)

const (
	VerticalAspectRatio = "9:16"
	VerticalResolution  = "720p"

	CharacterTypeAvatar       = "avatar"
	CharacterTypeTalkingPhoto = "talking_photo"

	VariableTypeText      = "text"
	VariableTypeCharacter = "character"
)

var resolutions = map[string]Dimension{
	"720p":  {Width: 1280, Height: 720},
	"1080p": {Width: 1920, Height: 1080},
}

type Dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Params struct {
	Topic            string
	Script           string
	Style            model.Style
	Duration         int
	AvatarID         string
	IsPhotoAvatar    bool
	VoiceID          string
	OutputResolution string
	AspectRatio      string
	Dimension        Dimension
	ForceVertical    bool
	Test             bool
}

// Normalize applies the vertical override and fills a missing dimension.
func Normalize(p Params) Params {
	if p.AspectRatio == VerticalAspectRatio {
		p.OutputResolution = VerticalResolution
		p.Dimension = Dimension{Width: 720, Height: 1280}
		p.ForceVertical = true
		return p
	}

	if p.Dimension == (Dimension{}) {
		if d, ok := resolutions[p.OutputResolution]; ok {
			p.Dimension = d
		} else {
			p.Dimension = resolutions[VerticalResolution]
		}
	}
	return p
}

type Character struct {
	Type           string `json:"type"`
	AvatarID       string `json:"avatar_id,omitempty"`
	AvatarStyle    string `json:"avatar_style,omitempty"`
	TalkingPhotoID string `json:"talking_photo_id,omitempty"`
}

// CharacterFor selects avatar_id or talking_photo_id by avatar kind.
func CharacterFor(p Params) Character {
	if p.IsPhotoAvatar {
		return Character{Type: CharacterTypeTalkingPhoto, TalkingPhotoID: p.AvatarID}
	}
	return Character{Type: CharacterTypeAvatar, AvatarID: p.AvatarID, AvatarStyle: "normal"}
}

type Voice struct {
	Type      string `json:"type"`
	InputText string `json:"input_text"`
	VoiceID   string `json:"voice_id,omitempty"`
}

type VideoInput struct {
	Character Character `json:"character"`
	Voice     Voice     `json:"voice"`
}

type AvatarRequest struct {
	Title         string       `json:"title,omitempty"`
	VideoInputs   []VideoInput `json:"video_inputs"`
	Dimension     Dimension    `json:"dimension"`
	AspectRatio   string       `json:"aspect_ratio,omitempty"`
	ForceVertical bool         `json:"force_vertical,omitempty"`
	Test          bool         `json:"test,omitempty"`
}

// AvatarV2 builds the body for a direct avatar render.
func AvatarV2(p Params) AvatarRequest {
	p = Normalize(p)
	return AvatarRequest{
		Title: p.Topic,
		VideoInputs: []VideoInput{{
			Character: CharacterFor(p),
			Voice:     Voice{Type: "text", InputText: p.Script, VoiceID: p.VoiceID},
		}},
		Dimension:     p.Dimension,
		AspectRatio:   p.AspectRatio,
		ForceVertical: p.ForceVertical,
		Test:          p.Test,
	}
}

// Variable is a template variable as exposed by the template schema and as sent back on generate.
type Variable struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

type TemplateSpec struct {
	ScriptKey string
	AvatarKey string
	// Variables is the template schema; nil when it could not be fetched.
	Variables map[string]Variable
	NodeIDs   []string
	// Nodes holds existing node definitions keyed by node id.
	Nodes map[string]map[string]any
}

// CharacterVariable returns the template variable that should carry the avatar.
func (s TemplateSpec) CharacterVariable() (string, bool) {
	if v, ok := s.Variables[s.AvatarKey]; ok && s.AvatarKey != "" {
		if v.Type == VariableTypeCharacter || v.Type == "" {
			return s.AvatarKey, true
		}
	}

	names := lo.Keys(s.Variables)
	sort.Strings(names)
	for _, name := range names {
		if s.Variables[name].Type == VariableTypeCharacter {
			return name, true
		}
	}
	return "", false
}

type TemplateRequest struct {
	Title         string              `json:"title,omitempty"`
	Caption       bool                `json:"caption"`
	Variables     map[string]Variable `json:"variables"`
	NodesOverride []map[string]any    `json:"nodes_override,omitempty"`
	Dimension     Dimension           `json:"dimension"`
	ForceVertical bool                `json:"force_vertical,omitempty"`
	Test          bool                `json:"test,omitempty"`
}

// TemplateV2 fills the script variable and, when the template exposes one, the character variable.
// The second return value reports whether the avatar made it into the body.
func TemplateV2(p Params, spec TemplateSpec) (TemplateRequest, bool) {
	p = Normalize(p)
	req := baseTemplateRequest(p, spec)

	name, ok := spec.CharacterVariable()
	if !ok {
		return req, false
	}

	character := CharacterFor(p)
	props := map[string]any{"type": character.Type}
	if p.IsPhotoAvatar {
		props["character_id"] = character.TalkingPhotoID
	} else {
		props["character_id"] = character.AvatarID
	}
	req.Variables[name] = Variable{Name: name, Type: VariableTypeCharacter, Properties: props}
	return req, true
}

// TemplateV1 injects the avatar through node overrides. Existing node fields such as motion
// or generation engine settings are kept; only the character reference is replaced.
func TemplateV1(p Params, spec TemplateSpec) TemplateRequest {
	p = Normalize(p)
	req := baseTemplateRequest(p, spec)

	nodeIDs := spec.NodeIDs
	if len(nodeIDs) == 0 {
		nodeIDs = lo.Keys(spec.Nodes)
		sort.Strings(nodeIDs)
	}

	character := CharacterFor(p)
	for _, id := range lo.Uniq(nodeIDs) {
		node := make(map[string]any)
		if existing, ok := spec.Nodes[id]; ok {
			maps.Copy(node, existing)
		}
		node["id"] = id
		node["character"] = character
		req.NodesOverride = append(req.NodesOverride, node)
	}
	return req
}

func baseTemplateRequest(p Params, spec TemplateSpec) TemplateRequest {
	scriptKey := spec.ScriptKey
	if scriptKey == "" {
		scriptKey = "script"
	}
	return TemplateRequest{
		Title: p.Topic,
		Variables: map[string]Variable{
			scriptKey: {
				Name:       scriptKey,
				Type:       VariableTypeText,
				Properties: map[string]any{"content": p.Script},
			},
		},
		Dimension:     p.Dimension,
		ForceVertical: p.ForceVertical,
		Test:          p.Test,
	}
}
