package fuzzy

import (
	"strings"
	"unicode"

	"github.com/mehmetkoksal-w/paired/internal/model"
)

// NormalizeKey lower-cases a key and drops every rune that is not a letter
// or a digit.
func NormalizeKey(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(unicode.ToLower(r))
		}
	}
	return result.String()
}

// Normalize canonicalizes a context so equivalent contexts compare equal.
// String values are lower-cased and trimmed; other values are kept as is.
// When two keys collapse to the same normalized key, the one that sorts last
// in its original spelling wins.
func Normalize(ctx model.Context) model.Context {
	out := make(model.Context, len(ctx))
	for _, key := range ctx.Keys() {
		v := ctx[key]
		if v.IsString() {
			v = model.String(strings.ToLower(strings.TrimSpace(v.Str())))
		}
		out[NormalizeKey(key)] = v
	}
	return out
}
