package memory

import (
	"regexp"
	"strings"

	"github.com/mehmetkoksal-w/paired/internal/model"
)

const (
	pathPlaceholder  = "<path>"
	emailPlaceholder = "<email>"
)

var (
	emailPattern = regexp.MustCompile(`(?i)^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	drivePattern = regexp.MustCompile(`(?i)^[a-z]:[\\/]`)
)

// Anonymize replaces context values that identify a user or machine.
// The rewrite is one-way.
func Anonymize(ctx model.Context) model.Context {
	out := make(model.Context, len(ctx))
	for k, v := range ctx {
		if v.IsString() {
			switch s := strings.TrimSpace(v.Str()); {
			case emailPattern.MatchString(s):
				v = model.String(emailPlaceholder)
			case looksLikePath(s):
				v = model.String(pathPlaceholder)
			}
		}
		out[k] = v
	}
	return out
}

func looksLikePath(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	switch {
	case strings.HasPrefix(s, "/"),
		strings.HasPrefix(s, "~/"),
		strings.HasPrefix(s, "./"),
		strings.HasPrefix(s, "../"),
		strings.HasPrefix(s, `\\`),
		drivePattern.MatchString(s):
		return true
	}
	// relative paths like src/main.go, but not urls
	if strings.Contains(s, "://") {
		return false
	}
	return strings.Contains(s, "/") && !strings.HasSuffix(s, "/")
}
