// Package editor implements the line-delimited JSON protocol spoken between
// the editor plugin and quill.
//
// Each input line is one Request; quill answers every request with exactly one
// Response line carrying the same ID. stdout carries nothing else.
package editor

// Request types sent by the editor plugin.
const (
	TypeHello              = "hello"
	TypeSuggestionAccepted = "suggestion_accepted"
	TypeDocumentChanged    = "document_changed"
	TypeTabChange          = "tab_change"
	TypeFileClose          = "file_close"
	TypeReflow             = "reflow"
	TypeSnippet            = "snippet"
)

// Request is a single editor event or transform request.
type Request struct {
	ID         int64  `json:"id"`
	Type       string `json:"type"`
	Version    string `json:"version,omitempty"`    // hello: plugin version
	URI        string `json:"uri,omitempty"`        // document events
	LanguageID string `json:"languageId,omitempty"` // document events
	Content    string `json:"content,omitempty"`    // full document text
	Suggestion string `json:"suggestion,omitempty"` // reflow, snippet
	CursorLine string `json:"cursorLine,omitempty"` // reflow: text of the cursor line
	Column     int    `json:"column,omitempty"`     // reflow: cursor column
}

// Response answers one Request.
type Response struct {
	ID         int64    `json:"id"`
	OK         bool     `json:"ok"`
	Error      string   `json:"error,omitempty"`
	Version    string   `json:"version,omitempty"`
	ActivityID string   `json:"activityId,omitempty"`
	Emitted    bool     `json:"emitted,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Text       *string  `json:"text,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// ReasonLanguageNotTracked marks document events for languages outside feedback.languages.
const ReasonLanguageNotTracked = "language_not_tracked"

func failure(id int64, err error) Response {
	return Response{ID: id, Error: err.Error()}
}

func textResponse(id int64, text string) Response {
	return Response{ID: id, OK: true, Text: &text}
}
