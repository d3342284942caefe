package editor

import (
	"fmt"
	"log/slog"

	"github.com/Masterminds/semver/v3"

	"thoreinstein.com/quill/pkg/activity"
	quillerrors "thoreinstein.com/quill/pkg/errors"
	"thoreinstein.com/quill/pkg/suggestion"
)

// Sender hands an emitted payload to the submission layer without waiting.
type Sender interface {
	Send(payload activity.Payload) bool
}

// Handler dispatches editor requests to the activity tracker and the
// suggestion transforms.
type Handler struct {
	tracker    *activity.Tracker
	sender     Sender
	settings   *Settings
	minVersion *semver.Version
	version    string
	logger     *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMinPluginVersion rejects hello requests from plugins older than v.
func WithMinPluginVersion(v *semver.Version) HandlerOption {
	return func(h *Handler) { h.minVersion = v }
}

// WithVersion sets the quill version reported in hello responses.
func WithVersion(v string) HandlerOption {
	return func(h *Handler) { h.version = v }
}

// WithHandlerLogger sets the handler logger.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a Handler. sender may be nil, in which case emitted
// payloads are discarded with a warning.
func NewHandler(tracker *activity.Tracker, sender Sender, settings *Settings, opts ...HandlerOption) *Handler {
	h := &Handler{
		tracker:  tracker,
		sender:   sender,
		settings: settings,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes one request. It never panics on bad input; problems are
// reported in the Response.
func (h *Handler) Handle(req Request) Response {
	switch req.Type {
	case TypeHello:
		return h.hello(req)
	case TypeSuggestionAccepted:
		return h.suggestionAccepted(req)
	case TypeDocumentChanged:
		return h.record(req, activity.TriggerOther)
	case TypeTabChange:
		return h.record(req, activity.TriggerTabChange)
	case TypeFileClose:
		return h.record(req, activity.TriggerFileClose)
	case TypeReflow:
		return h.reflow(req)
	case TypeSnippet:
		return textResponse(req.ID, suggestion.ToPlaceholderSnippet(req.Suggestion))
	}
	return failure(req.ID, quillerrors.NewProtocolError(0, fmt.Sprintf("unknown request type %q", req.Type)))
}

func (h *Handler) hello(req Request) Response {
	if h.minVersion != nil {
		v, err := semver.NewVersion(req.Version)
		if err != nil {
			return failure(req.ID, quillerrors.NewProtocolError(0, "invalid plugin version").WithCause(err))
		}
		if v.LessThan(h.minVersion) {
			return failure(req.ID, quillerrors.NewProtocolError(0,
				fmt.Sprintf("plugin version %s is older than the minimum supported %s", v, h.minVersion)))
		}
	}
	return Response{ID: req.ID, OK: true, Version: h.version}
}

// suggestionAccepted starts tracking a document the first time a suggestion
// is accepted for it. Later accepts keep the running session.
func (h *Handler) suggestionAccepted(req Request) Response {
	if req.URI == "" {
		return failure(req.ID, quillerrors.NewProtocolError(0, "uri is required"))
	}
	if !h.settings.Tracks(req.LanguageID) {
		return Response{ID: req.ID, OK: true, Reason: ReasonLanguageNotTracked}
	}

	id, _ := h.tracker.SeedOnce(req.URI, req.Content)
	return Response{ID: req.ID, OK: true, ActivityID: id}
}

func (h *Handler) record(req Request, trigger activity.Trigger) Response {
	if req.URI == "" {
		return failure(req.ID, quillerrors.NewProtocolError(0, "uri is required"))
	}
	if !h.settings.Tracks(req.LanguageID) {
		return Response{ID: req.ID, OK: true, Reason: ReasonLanguageNotTracked}
	}

	d := h.tracker.Record(req.URI, req.Content, trigger, h.settings.Gate())
	if !d.Emit {
		return Response{ID: req.ID, OK: true, Reason: string(d.Reason)}
	}

	if h.sender != nil {
		h.sender.Send(d.Payload)
	} else {
		h.logger.Warn("feedback event discarded, no sender configured", "uri", req.URI, "trigger", trigger.String())
	}
	return Response{ID: req.ID, OK: true, Emitted: true, ActivityID: d.Payload.ActivityID}
}

func (h *Handler) reflow(req Request) Response {
	text, malformed := suggestion.ReflowIndentation(req.Suggestion, req.CursorLine, req.Column)
	resp := textResponse(req.ID, text)
	for _, m := range malformed {
		h.logger.Warn(m.String())
		resp.Warnings = append(resp.Warnings, m.String())
	}
	return resp
}
