package memory

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Specializations maps an agent to the pattern-type prefixes it owns.
// An entry containing glob metacharacters ("bug_*", "architecture/**") is
// matched as a doublestar pattern instead of a prefix.
type Specializations map[string][]string

// Owns reports whether patternType falls under one of agent's specializations.
func (s Specializations) Owns(agent, patternType string) bool {
	for _, entry := range s[agent] {
		if entry == "" {
			continue
		}
		if isGlob(entry) {
			ok, err := doublestar.Match(entry, patternType)
			if err == nil && ok {
				return true
			}
			continue
		}
		if strings.HasPrefix(patternType, entry) {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares nothing with s.
func (s Specializations) Clone() Specializations {
	out := make(Specializations, len(s))
	for agent, prefixes := range s {
		out[agent] = append([]string(nil), prefixes...)
	}
	return out
}

func isGlob(entry string) bool {
	return strings.ContainsAny(entry, "*?[{")
}
