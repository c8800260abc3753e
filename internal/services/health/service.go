// Package health reports process liveness and which optional backends the
// deployment was configured with.
package health

import "time"

// Components records the configured backends so a status probe can tell an
// inline dev deployment from a queued one.
type Components struct {
	Database    bool
	ObjectStore string
	Queue       string
	LLMProvider string
}

// Service reports liveness and the configured component set.
type Service struct {
	started    time.Time
	components Components
}

// NewService constructs a health service for the given component set.
func NewService(components Components) *Service {
	if components.Queue == "" {
		components.Queue = "inline"
	}
	if components.LLMProvider == "" {
		components.LLMProvider = "placeholder"
	}
	return &Service{started: time.Now(), components: components}
}

// Status returns the payload served on the health endpoint.
func (s *Service) Status() map[string]any {
	return map[string]any{
		"ok":          true,
		"uptimeS":     int64(time.Since(s.started).Seconds()),
		"database":    s.components.Database,
		"objectStore": s.components.ObjectStore,
		"queue":       s.components.Queue,
		"llmProvider": s.components.LLMProvider,
	}
}
