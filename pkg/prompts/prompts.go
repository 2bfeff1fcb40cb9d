package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

const (
	MaxPromptLength = 1000
	ellipsis        = "..."
)

//go:embed default.yaml
var defaultPrompts []byte

type Prompts struct {
	System SystemPrompts `yaml:"system"`
	Script ScriptPrompts `yaml:"script"`
	Video  VideoPrompts  `yaml:"video"`
}

type SystemPrompts struct {
	Script string `yaml:"script"`
}

type ScriptPrompts struct {
	Generate string `yaml:"generate"`
}

type VideoPrompts struct {
	Generate string `yaml:"generate"`
}

type ScriptParams struct {
	Topic     string
	Style     string
	Duration  int
	WordCount int
}

type VideoParams struct {
	Topic  string
	Style  string
	Script string
}

// Load returns the embedded prompts.
func Load() (*Prompts, error) {
	return parse(defaultPrompts)
}

// LoadFrom reads prompts from path; sections missing from the file keep the embedded text.
func LoadFrom(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	p, err := parse(defaultPrompts)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file: %w", err)
	}

	return p, nil
}

func parse(data []byte) (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse prompts file: %w", err)
	}
	return &p, nil
}

func (p *Prompts) RenderScript(params ScriptParams) (string, error) {
	return render(p.Script.Generate, params)
}

// RenderVideo builds a text-to-video prompt capped at MaxPromptLength.
func (p *Prompts) RenderVideo(params VideoParams) (string, error) {
	out, err := render(p.Video.Generate, params)
	if err != nil {
		return "", err
	}
	return TruncatePrompt(out, MaxPromptLength), nil
}

// TruncatePrompt cuts s to at most limit runes, ending with "..." when cut.
func TruncatePrompt(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return string([]rune(s)[:limit])
	}
	return string([]rune(s)[:limit-len(ellipsis)]) + ellipsis
}

func render(tmpl string, data any) (string, error) {
	t, err := template.New("prompt").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
