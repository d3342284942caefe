package feedback

import (
	"log/slog"
	"sync"

	"thoreinstein.com/quill/pkg/activity"
)

// Switch forwards payloads to the current Dispatcher. The dispatcher can be
// replaced while a session runs, for example when feedback.base_url is edited.
// Replaced dispatchers keep their in-flight sends and are drained by Wait.
type Switch struct {
	logger *slog.Logger

	mu      sync.Mutex
	current *Dispatcher
	retired []*Dispatcher
}

// NewSwitch creates a Switch sending through d. d may be nil when no
// endpoint is configured yet.
func NewSwitch(d *Dispatcher, logger *slog.Logger) *Switch {
	if logger == nil {
		logger = slog.Default()
	}
	return &Switch{logger: logger, current: d}
}

// Send hands payload to the current dispatcher. Without one the payload is
// discarded with a warning and Send returns false.
func (s *Switch) Send(payload activity.Payload) bool {
	s.mu.Lock()
	d := s.current
	s.mu.Unlock()

	if d == nil {
		s.logger.Warn("feedback event discarded, no endpoint configured", "uri", payload.DocumentURI)
		return false
	}
	return d.Send(payload)
}

// Replace makes d the current dispatcher. d may be nil to stop sending.
func (s *Switch) Replace(d *Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current != d {
		s.retired = append(s.retired, s.current)
	}
	s.current = d
}

// Active reports whether a dispatcher is installed.
func (s *Switch) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Wait blocks until every dispatcher the Switch has used is idle.
func (s *Switch) Wait() {
	for _, d := range s.dispatchers() {
		d.Wait()
	}
}

// Stats sums the counters of every dispatcher the Switch has used.
func (s *Switch) Stats() Stats {
	var total Stats
	for _, d := range s.dispatchers() {
		st := d.Stats()
		total.Sent += st.Sent
		total.Failed += st.Failed
		total.Dropped += st.Dropped
	}
	return total
}

func (s *Switch) dispatchers() []*Dispatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := append([]*Dispatcher(nil), s.retired...)
	if s.current != nil {
		all = append(all, s.current)
	}
	return all
}
