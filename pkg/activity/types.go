package activity

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Trigger identifies the editor event that caused a feedback decision.
type Trigger int

const (
	// TriggerOther is any content-mutation observation.
	TriggerOther Trigger = iota
	// TriggerTabChange fires when the editor switches away from the document.
	TriggerTabChange
	// TriggerFileClose fires when the document is closed and ends its session.
	TriggerFileClose
)

var triggerNames = map[Trigger]string{
	TriggerOther:     "OTHER",
	TriggerTabChange: "TAB_CHANGE",
	TriggerFileClose: "FILE_CLOSE",
}

// String returns the wire name of the trigger.
func (t Trigger) String() string {
	if name, ok := triggerNames[t]; ok {
		return name
	}
	return "OTHER"
}

// MarshalText implements encoding.TextMarshaler so payloads carry the wire name.
func (t Trigger) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Trigger) UnmarshalText(text []byte) error {
	parsed, err := ParseTrigger(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTrigger converts a wire name (case-insensitive) into a Trigger.
// An empty name is treated as TriggerOther.
func ParseTrigger(name string) (Trigger, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "OTHER":
		return TriggerOther, nil
	case "TAB_CHANGE":
		return TriggerTabChange, nil
	case "FILE_CLOSE":
		return TriggerFileClose, nil
	}
	return TriggerOther, errors.Newf("unknown trigger %q", name)
}

// Record is the activity state held for one tracked document.
type Record struct {
	ActivityID  string
	LastContent string
}

// DocState is the per-document state: either Untracked (the zero value) or
// Tracked with a Record.
type DocState struct {
	tracked bool
	record  Record
}

// Untracked returns the state of a document with no observed suggestion activity.
func Untracked() DocState {
	return DocState{}
}

// Tracked returns the state of a document carrying the given record.
func Tracked(r Record) DocState {
	return DocState{tracked: true, record: r}
}

// IsTracked reports whether the document has an activity record.
func (s DocState) IsTracked() bool {
	return s.tracked
}

// Record returns the activity record and whether the state is Tracked.
func (s DocState) Record() (Record, bool) {
	return s.record, s.tracked
}

// String returns "tracked" or "untracked".
func (s DocState) String() string {
	if s.tracked {
		return "tracked"
	}
	return "untracked"
}

// Payload is the feedback event built for one emission. It is a value type;
// the submitter receives its own copy.
type Payload struct {
	Content     string  `json:"content"`
	DocumentURI string  `json:"documentUri"`
	Trigger     Trigger `json:"trigger"`
	ActivityID  string  `json:"activityId"`
}

// SuppressReason explains why a decision did not emit.
type SuppressReason string

const (
	ReasonNone            SuppressReason = ""
	ReasonFeatureDisabled SuppressReason = "feature_disabled"
	ReasonNoBaseURL       SuppressReason = "no_base_url"
	ReasonUntracked       SuppressReason = "untracked"
	ReasonUnchanged       SuppressReason = "unchanged"
	ReasonEmptyContent    SuppressReason = "empty_content"
)

// Decision is the outcome of Tracker.Record.
type Decision struct {
	Emit    bool
	Payload Payload
	Reason  SuppressReason
}

// Suppressed returns a non-emitting decision with the given reason.
func Suppressed(reason SuppressReason) Decision {
	return Decision{Reason: reason}
}

// Emitted returns a decision that carries p for submission.
func Emitted(p Payload) Decision {
	return Decision{Emit: true, Payload: p}
}

// Gate carries the configuration values consulted before any decision.
type Gate struct {
	FeatureEnabled bool
	BaseURL        string
}

func (g Gate) check() SuppressReason {
	if !g.FeatureEnabled {
		return ReasonFeatureDisabled
	}
	if strings.TrimSpace(g.BaseURL) == "" {
		return ReasonNoBaseURL
	}
	return ReasonNone
}
