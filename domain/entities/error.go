package entities

import (
	"log/slog"
	"strings"
)

// ErrorDetail is the flattened form of a host error. Type is one of "parse",
// "bundle", "library", "instantiate", "feature" or "internal"; Code names the
// file, binary or plugin URI involved.
type ErrorDetail struct {
	Details    map[string]any `json:"details,omitempty"`
	Message    string         `json:"message"`
	Type       string         `json:"type"`
	Code       string         `json:"code"`
	IsNotFound bool           `json:"is_not_found,omitempty"`
}

func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Type != "" && e.Type != "internal" {
		b.WriteString(e.Type)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Code != "" {
		b.WriteString(" [")
		b.WriteString(e.Code)
		b.WriteString("]")
	}
	return b.String()
}

// LogValue renders the detail as an slog group.
func (e *ErrorDetail) LogValue() slog.Value {
	if e == nil {
		return slog.Value{}
	}
	attrs := []slog.Attr{
		slog.String("type", e.Type),
		slog.String("message", e.Message),
	}
	if e.Code != "" {
		attrs = append(attrs, slog.String("code", e.Code))
	}
	if e.IsNotFound {
		attrs = append(attrs, slog.Bool("not_found", true))
	}
	for k, v := range e.Details {
		attrs = append(attrs, slog.Any(k, v))
	}
	return slog.GroupValue(attrs...)
}

func NewErrorDetail(errorType, message string) *ErrorDetail {
	return &ErrorDetail{Type: errorType, Message: message}
}

func (e *ErrorDetail) WithDetails(details map[string]any) *ErrorDetail {
	e.Details = details
	return e
}

func (e *ErrorDetail) WithCode(code string) *ErrorDetail {
	e.Code = code
	return e
}
