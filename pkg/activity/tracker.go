// Package activity tracks AI suggestion activity per document and decides
// when a "content changed" feedback event should be emitted.
//
// A document becomes tracked when a suggestion is accepted for it (Seed).
// Later lifecycle events (Record) compare the current text against the text
// seen at the previous decision and emit only when it changed. A tab change
// starts a new activity session; a file close ends tracking for the document.
package activity

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces unique activity identifiers.
type IDGenerator func() string

// NewUUID returns a random (version 4) UUID string.
func NewUUID() string {
	return uuid.NewString()
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithIDGenerator overrides the activity ID generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(t *Tracker) {
		if gen != nil {
			t.newID = gen
		}
	}
}

// WithLogger sets the logger used for decision diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Tracker owns the activity state of every document in an editing session.
// It is safe for concurrent use; each call holds a single lock for its duration.
type Tracker struct {
	mu     sync.Mutex
	docs   map[string]Record
	newID  IDGenerator
	logger *slog.Logger
}

// New creates an empty Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		docs:   make(map[string]Record),
		newID:  NewUUID,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Seed starts a new activity session for uri with content as its baseline and
// returns the new activity ID. Seeding a tracked document replaces its record.
func (t *Tracker) Seed(uri, content string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.newID()
	t.docs[uri] = Record{ActivityID: id, LastContent: content}
	t.logger.Debug("activity seeded", "uri", uri, "activity_id", id)
	return id
}

// SeedOnce seeds uri unless it is already tracked. It returns the activity ID
// now in effect and whether a new session was started.
func (t *Tracker) SeedOnce(uri, content string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, ok := t.docs[uri]; ok {
		return rec.ActivityID, false
	}
	id := t.newID()
	t.docs[uri] = Record{ActivityID: id, LastContent: content}
	t.logger.Debug("activity seeded", "uri", uri, "activity_id", id)
	return id, true
}

// Record evaluates a lifecycle event for uri and returns whether a feedback
// payload should be emitted. It never creates a record for an untracked document.
//
// The payload always carries the activity ID that was current on entry; a
// rotation caused by a tab change applies to the next decision.
func (t *Tracker) Record(uri, content string, trigger Trigger, gate Gate) Decision {
	if reason := gate.check(); reason != ReasonNone {
		return t.suppress(uri, trigger, reason)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.docs[uri]
	if !ok {
		return t.suppress(uri, trigger, ReasonUntracked)
	}
	activityID := rec.ActivityID
	previous := rec.LastContent

	if trigger == TriggerFileClose {
		delete(t.docs, uri)
	}

	if content == previous {
		return t.suppress(uri, trigger, ReasonUnchanged)
	}

	switch trigger {
	case TriggerFileClose:
		// record already removed
	case TriggerTabChange:
		t.docs[uri] = Record{ActivityID: t.newID(), LastContent: content}
	default:
		t.docs[uri] = Record{ActivityID: activityID, LastContent: content}
	}

	if strings.TrimSpace(content) == "" {
		return t.suppress(uri, trigger, ReasonEmptyContent)
	}

	t.logger.Debug("feedback event emitted", "uri", uri, "trigger", trigger.String(), "activity_id", activityID)
	return Emitted(Payload{
		Content:     content,
		DocumentURI: uri,
		Trigger:     trigger,
		ActivityID:  activityID,
	})
}

func (t *Tracker) suppress(uri string, trigger Trigger, reason SuppressReason) Decision {
	t.logger.Debug("feedback event suppressed", "uri", uri, "trigger", trigger.String(), "reason", string(reason))
	return Suppressed(reason)
}

// State returns the current state of uri.
func (t *Tracker) State(uri string) DocState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, ok := t.docs[uri]; ok {
		return Tracked(rec)
	}
	return Untracked()
}

// Forget drops any record for uri without making a decision.
func (t *Tracker) Forget(uri string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.docs, uri)
}

// Len returns the number of tracked documents.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.docs)
}
