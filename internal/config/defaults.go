package config

// Default returns the stock configuration with the built-in agent roster.
func Default() Config {
	return Config{
		SchemaVersion: SchemaVersion,
		Matching: Matching{
			LearningRate:        0.1,
			MinSimilarity:       0.7,
			FuzzyCutoff:         0.6,
			PartialCredit:       0.5,
			MaxResults:          10,
			MaxAgeDays:          180,
			RecentOutcomeLimit:  20,
			EffectiveThreshold:  0.7,
			RecommendationLimit: 5,
		},
		Relevance: Relevance{
			Base:           0.5,
			SameAgent:      0.3,
			Specialization: 0.2,
			Recent:         0.1,
			RecentDays:     7,
			SuccessWeight:  0.2,
			Frequent:       0.1,
			FrequentUsage:  5,
		},
		Delegation: Delegation{
			TriggerThreshold:         0.2,
			DelegationThreshold:      0.4,
			AdjustmentRate:           0.05,
			MinThreshold:             0.1,
			MaxThreshold:             0.8,
			RecentWindow:             10,
			KeywordBase:              0.5,
			PatternBase:              0.4,
			PerMatch:                 0.1,
			MaxLearningBonus:         0.2,
			PhraseBonus:              0.1,
			LearnThreshold:           0.6,
			PhraseStep:               0.1,
			MaxPhrases:               10,
			AutoAdjustMinDelegations: 5,
		},
		Specializations: defaultSpecializations(),
		Profiles:        defaultProfiles(),
		Storage:         Storage{Driver: DriverSQLite},
		Flush:           Flush{Mode: FlushBatched, Interval: "30s"},
		Logging:         Logging{Level: "warn"},
	}
}

func defaultSpecializations() map[string][]string {
	return map[string][]string{
		"sherlock": {"bug_", "test", "quality"},
		"leonardo": {"design_", "component_", "dependency", "architecture/**"},
		"edison":   {"refactor", "optimization", "bug_fix", "implementation"},
		"alex":     {"process_", "team_", "handoff", "communication"},
		"maya":     {"ux_", "accessibility", "usability"},
		"vince":    {"process_", "automation", "efficiency"},
		"marie":    {"analysis", "knowledge_", "insight", "data_*"},
	}
}

func defaultProfiles() []TriggerProfile {
	return []TriggerProfile{
		{
			Specialist: "sherlock",
			Name:       "Sherlock",
			Role:       "Quality Assurance",
			Keywords:   []string{"test", "bug", "quality", "regression", "coverage", "flaky", "verify", "qa"},
			Patterns:   []string{`\b(unit|integration|e2e)\s+tests?\b`, `\b(fails?|failing|broken)\b`},
		},
		{
			Specialist: "leonardo",
			Name:       "Leonardo",
			Role:       "Architecture",
			Keywords:   []string{"architecture", "design pattern", "system design", "scalab", "microservice", "interface"},
			Patterns:   []string{`\bdesign\s+(the|a|an)\b`, `\b(coupling|cohesion|layering)\b`},
		},
		{
			Specialist: "edison",
			Name:       "Edison",
			Role:       "Development",
			Keywords:   []string{"implement", "code", "refactor", "debug", "function", "compile", "performance"},
			Patterns:   []string{`\b(write|build)\s+(a|the|some)\b`, `\bfix\s+(the|this|a)\b`},
		},
		{
			Specialist: "alex",
			Name:       "Alex",
			Role:       "Project Management",
			Keywords:   []string{"plan", "roadmap", "milestone", "priorit", "deadline", "coordinate", "stakeholder"},
			Patterns:   []string{`\bwho\s+(should|will)\b`, `\bby\s+(monday|tuesday|wednesday|thursday|friday|next week)\b`},
		},
		{
			Specialist: "maya",
			Name:       "Maya",
			Role:       "User Experience",
			Keywords:   []string{"user experience", "ux", "usability", "accessibility", "wireframe", "user flow", "a11y"},
			Patterns:   []string{`\busers?\s+(can't|cannot|struggle)\b`},
		},
		{
			Specialist: "vince",
			Name:       "Vince",
			Role:       "Scrum Master",
			Keywords:   []string{"sprint", "standup", "retro", "backlog", "velocity", "blocker", "scrum"},
			Patterns:   []string{`\b(blocked|blocking)\b`},
		},
		{
			Specialist: "marie",
			Name:       "Marie",
			Role:       "Data Analysis",
			Keywords:   []string{"data", "metric", "analy", "dashboard", "statistic", "trend", "report"},
			Patterns:   []string{`\b(how many|what percentage)\b`},
		},
	}
}
