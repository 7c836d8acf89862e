package insight

import "sort"

// Uncategorized collects pattern types outside the category table.
const Uncategorized = "uncategorized"

// Categories groups the well-known pattern types.
var Categories = map[string][]string{
	"code_quality":  {"bug_fix", "refactor", "optimization"},
	"architecture":  {"design_pattern", "component_structure", "dependency"},
	"workflow":      {"process_improvement", "automation", "efficiency"},
	"learning":      {"knowledge_gap", "skill_development", "insight"},
	"collaboration": {"team_coordination", "communication", "handoff"},
}

var categoryByType = func() map[string]string {
	out := make(map[string]string)
	for cat, types := range Categories {
		for _, t := range types {
			out[t] = cat
		}
	}
	return out
}()

// CategoryOf returns the category a pattern type belongs to.
func CategoryOf(patternType string) string {
	if cat, ok := categoryByType[patternType]; ok {
		return cat
	}
	return Uncategorized
}

// CategoryNames returns the known category names in sorted order.
func CategoryNames() []string {
	names := make([]string, 0, len(Categories))
	for name := range Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
