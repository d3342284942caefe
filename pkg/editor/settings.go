package editor

import (
	"slices"
	"sync"

	"thoreinstein.com/quill/pkg/activity"
	"thoreinstein.com/quill/pkg/config"
)

// Settings is the live view of the feedback configuration consulted on every
// event. It is updated in place when the config file changes.
type Settings struct {
	mu  sync.RWMutex
	cfg config.FeedbackConfig
}

// NewSettings creates Settings from the loaded feedback configuration.
func NewSettings(cfg config.FeedbackConfig) *Settings {
	s := &Settings{}
	s.Update(cfg)
	return s
}

// Update replaces the settings with cfg.
func (s *Settings) Update(cfg config.FeedbackConfig) {
	cfg.Languages = slices.Clone(cfg.Languages)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Gate returns the current feature gate.
func (s *Settings) Gate() activity.Gate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activity.Gate{FeatureEnabled: s.cfg.Enabled, BaseURL: s.cfg.BaseURL}
}

// Tracks reports whether documents in languageID take part in feedback.
func (s *Settings) Tracks(languageID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Tracks(languageID)
}
