// Package dasherr defines the coded errors returned to API and MCP clients.
package dasherr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Code defines a canonical error code used across the JSON API and MCP tools.
type Code string

const (
	// Validation & Input
	Validation    Code = "VALIDATION"
	InvalidHandle Code = "INVALID_HANDLE"
	UnknownBucket Code = "UNKNOWN_BUCKET"
	CursorInvalid Code = "CURSOR_INVALID"
	NotFound      Code = "NOT_FOUND"

	// Resource & Limits
	BusyResource Code = "BUSY_RESOURCE"
	Timeout      Code = "TIMEOUT"
	FileTooLarge Code = "FILE_TOO_LARGE"

	// Data
	MissingUpload     Code = "MISSING_UPLOAD"
	MissingColumn     Code = "MISSING_COLUMN"
	ParseFailed       Code = "PARSE_FAILED"
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	FilterFailed      Code = "FILTER_FAILED"
	RenderFailed      Code = "RENDER_FAILED"

	// Access
	OpenFailed       Code = "OPEN_FAILED"
	PermissionDenied Code = "PERMISSION_DENIED"
)

// Entry documents a code's standard message, retry semantics, and next steps.
type Entry struct {
	Code      Code
	Message   string
	Status    int
	Retryable bool
	NextSteps []string
}

// catalog maps canonical codes to guidance. Messages can be overridden per error.
var catalog = map[Code]Entry{
	Validation:    {Code: Validation, Message: "invalid inputs", Status: http.StatusBadRequest, Retryable: true, NextSteps: []string{"Correct the inputs and retry"}},
	InvalidHandle: {Code: InvalidHandle, Message: "upload handle not found or expired", Status: http.StatusNotFound, Retryable: true, NextSteps: []string{"Upload the file again"}},
	UnknownBucket: {Code: UnknownBucket, Message: "unknown healthiness index range", Status: http.StatusBadRequest, Retryable: true, NextSteps: []string{"Call list_filter_options for the valid range labels"}},
	CursorInvalid: {Code: CursorInvalid, Message: "cursor is invalid for current context", Status: http.StatusBadRequest, Retryable: true, NextSteps: []string{"Restart pagination from the first page", "Keep the same filters between pages"}},
	NotFound:      {Code: NotFound, Message: "section not found", Status: http.StatusNotFound, Retryable: false, NextSteps: []string{"Use a key listed in the dashboard sections"}},

	BusyResource: {Code: BusyResource, Message: "concurrent request limit reached", Status: http.StatusServiceUnavailable, Retryable: true, NextSteps: []string{"Retry after a short delay"}},
	Timeout:      {Code: Timeout, Message: "operation exceeded configured time limit", Status: http.StatusGatewayTimeout, Retryable: true, NextSteps: []string{"Narrow the selection or increase HIDASH_PASS_TIMEOUT"}},
	FileTooLarge: {Code: FileTooLarge, Message: "file exceeds configured size", Status: http.StatusRequestEntityTooLarge, Retryable: false, NextSteps: []string{"Use a smaller file or raise HIDASH_MAX_UPLOAD_BYTES"}},

	MissingUpload:     {Code: MissingUpload, Message: "required upload is missing", Status: http.StatusBadRequest, Retryable: true, NextSteps: []string{"Upload both the healthiness index and the OKR target files"}},
	MissingColumn:     {Code: MissingColumn, Message: "required column is missing", Status: http.StatusUnprocessableEntity, Retryable: false, NextSteps: []string{"Check the file has yearweek, location and region columns", "Check the column layout"}},
	ParseFailed:       {Code: ParseFailed, Message: "failed to parse upload", Status: http.StatusUnprocessableEntity, Retryable: false, NextSteps: []string{"Verify the file is a well-formed CSV or workbook"}},
	UnsupportedFormat: {Code: UnsupportedFormat, Message: "unsupported file format", Status: http.StatusUnsupportedMediaType, Retryable: false, NextSteps: []string{"Convert to .csv or .xlsx and retry"}},
	FilterFailed:      {Code: FilterFailed, Message: "filter execution failed", Status: http.StatusInternalServerError, Retryable: true, NextSteps: []string{"Retry with a simpler selection"}},
	RenderFailed:      {Code: RenderFailed, Message: "failed to render output", Status: http.StatusInternalServerError, Retryable: true, NextSteps: []string{"Retry or request the JSON form"}},

	OpenFailed:       {Code: OpenFailed, Message: "failed to open file", Status: http.StatusBadRequest, Retryable: true, NextSteps: []string{"Verify path, permissions, and format"}},
	PermissionDenied: {Code: PermissionDenied, Message: "path is outside the allowed directories", Status: http.StatusForbidden, Retryable: false, NextSteps: []string{"Choose a file inside HIDASH_ALLOWED_DIRS"}},
}

// Lookup returns the catalog entry for a code.
func Lookup(code Code) (Entry, bool) {
	e, ok := catalog[code]
	return e, ok
}

// Error is a coded error. It wraps the cause so errors.Is keeps working.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		if ent, ok := catalog[e.Code]; ok {
			msg = ent.Message
		}
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Status is the HTTP status for the error's code.
func (e *Error) Status() int {
	if ent, ok := catalog[e.Code]; ok && ent.Status != 0 {
		return ent.Status
	}
	return http.StatusInternalServerError
}

// New returns a coded error with an optional message override.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: strings.TrimSpace(message)}
}

// Wrap codes err, using its text as the message.
func Wrap(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: err.Error(), Err: err}
}

// Wrapf formats details for the code.
func Wrapf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// As extracts a coded error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Body is the JSON error envelope of the HTTP API.
type Body struct {
	Code      Code     `json:"code"`
	Message   string   `json:"message"`
	Retryable bool     `json:"retryable"`
	NextSteps []string `json:"next_steps,omitempty"`
}

// ToBody builds the JSON envelope for e.
func (e *Error) ToBody() Body {
	b := Body{Code: e.Code, Message: e.Message}
	if ent, ok := catalog[e.Code]; ok {
		if b.Message == "" {
			b.Message = ent.Message
		}
		b.Retryable = ent.Retryable
		b.NextSteps = ent.NextSteps
	}
	return b
}

// normalize builds a standard error string including next steps for MCP clients that
// surface only a message string. Format: "CODE: message" followed by a guidance tail.
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		// Unknown code; preserve as-is
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", string(code), base)
	}
	if base == "" {
		base = e.Message
	}
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}

// Text is the single-line "CODE: message | nextSteps: ..." form of e.
func (e *Error) Text() string {
	return normalize(e.Code, e.Message)
}

// ToolResult returns an MCP error result for e.
func (e *Error) ToolResult() *mcp.CallToolResult {
	return mcp.NewToolResultError(e.Text())
}

// FromText parses a "CODE: message" string, enriches it with catalog guidance,
// and returns an MCP tool error result.
func FromText(text string) *mcp.CallToolResult {
	t := strings.TrimSpace(text)
	if t == "" {
		return mcp.NewToolResultError(normalize(Validation, ""))
	}
	parts := strings.SplitN(t, ":", 2)
	code := Code(strings.TrimSpace(parts[0]))
	msg := ""
	if len(parts) > 1 {
		msg = strings.TrimSpace(parts[1])
	}
	return mcp.NewToolResultError(normalize(code, msg))
}
