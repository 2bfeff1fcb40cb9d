package llm

import (
	"context"
	"strings"
)

type ScriptRequest struct {
	Topic     string
	Style     string
	Duration  int
	WordCount int
}

type ScriptWriter interface {
	GenerateScript(ctx context.Context, req ScriptRequest) (string, error)
	Name() string
}

// CleanScript strips wrapping quotes and surrounding whitespace models like to add.
func CleanScript(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"`, "'", "“"} {
		closing := q
		if q == "“" {
			closing = "”"
		}
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, closing) && len(s) > len(q)+len(closing) {
			s = strings.TrimSpace(s[len(q) : len(s)-len(closing)])
		}
	}
	return s
}
