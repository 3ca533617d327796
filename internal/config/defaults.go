package config

import "time"

// Defaults returns a Config populated with default values. Parse decodes
// the file over these, so keys absent from the file keep their default and
// explicit zero values are kept as written.
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: ".retrolearn/learnings.db",
		},
		Scoring: ScoringConfig{
			RelevanceFloor: 0.2,
			CandidateLimit: 50,
			DefaultLimit:   5,
			FetchTimeout:   250 * time.Millisecond,
			CacheTTL:       30 * time.Second,
		},
		Adjust: AdjustConfig{
			MaxStepsPerRequest:    3,
			MaxAdjustmentsPerUnit: 3,
			MaxDepth:              10,
		},
		Maintenance: MaintenanceConfig{
			Interval:              24 * time.Hour,
			DeactivateConfidence:  0.2,
			DeactivateSuccessRate: 0.3,
			MinApplications:       5,
			SupersedeMargin:       0.2,
			Retention:             365 * 24 * time.Hour,
			LeaseTTL:              time.Hour,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
	}
}
