package core

// error_messages.go maps errors to user-facing messages with codes for
// support reference. Known sentinel errors are matched first with errors.Is;
// anything else falls back to case-insensitive substring patterns on the
// error text, the first match winning.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Too many rows in one import (HTTP 413)
//	IMP002 - No rows to import (HTTP 400)
//	IMP003 - Unknown import kind (HTTP 404)
//	IMP004 - Invalid import mode (HTTP 400)
//	IMP005 - Invalid review policy (HTTP 400)
//	IMP006 - Too many imports running (HTTP 503)
//
// # Authorization Errors (AUTH001-AUTH099)
//
//	AUTH001 - Organization must be chosen (HTTP 400)
//	AUTH002 - Not a member of the organization (HTTP 403)
//	AUTH003 - Not signed in (HTTP 401)
//	AUTH004 - Role may not create teams (HTTP 403)
//	AUTH005 - Missing API key, set by the web middleware (HTTP 401)
//	AUTH006 - Invalid API key, set by the web middleware (HTTP 403)
//
// # Team Errors (TEAM001-TEAM099)
//
//	TEAM001 - Invalid team handling policy (HTTP 400)
//	TEAM002 - Team does not exist (HTTP 404)
//
// # Review Errors (REV001-REV099)
//
//	REV001 - Review item not found (HTTP 404)
//	REV002 - Review item already decided (HTTP 409)
//	REV003 - select_alternative without an athlete (HTTP 400)
//	REV004 - Selected athlete was not offered (HTTP 400)
//	REV005 - Nothing to approve (HTTP 422)
//	REV006 - Unknown action (HTTP 400)
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large (HTTP 413)
//	FILE002 - Unsupported file format (HTTP 415)
//	FILE003 - Malformed CSV (HTTP 400)
//	FILE004 - No file provided (HTTP 400)
//	FILE005 - Empty file (HTTP 400)
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate record (HTTP 409)
//	DB002 - Record not found (HTTP 404)
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//	DB007 - Deadlock
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check the application
// logs for the original error.

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/johnahull/AthleteMetrics-sub002/internal/importer"
	"github.com/johnahull/AthleteMetrics-sub002/internal/review"
	"github.com/johnahull/AthleteMetrics-sub002/internal/sheet"
	"github.com/johnahull/AthleteMetrics-sub002/internal/store"
	"github.com/johnahull/AthleteMetrics-sub002/internal/teams"
)

var (
	// ErrUnauthenticated is returned when a request carries no actor.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrNoFile is returned when an upload carries no file.
	ErrNoFile = errors.New("no file provided")

	// ErrFileTooLarge is returned when an upload exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
	Status  int    // HTTP status the transport should use
}

type errorSentinel struct {
	target error
	msg    UserMessage
}

// errorSentinels are matched with errors.Is before any pattern. Order
// matters only when one error wraps several sentinels.
var errorSentinels = []errorSentinel{
	// Import
	{importer.ErrTooManyRows, UserMessage{"Too many rows in one import", "Split the file and import each part separately", "IMP001", http.StatusRequestEntityTooLarge}},
	{importer.ErrNoRows, UserMessage{"The file has no data rows", "Add at least one row below the header", "IMP002", http.StatusBadRequest}},
	{importer.ErrInvalidKind, UserMessage{"Unknown import type", "Import athletes or measurements", "IMP003", http.StatusNotFound}},
	{importer.ErrInvalidMode, UserMessage{"Invalid import mode", "Use create_only, match_only, smart_import or match_and_update", "IMP004", http.StatusBadRequest}},
	{importer.ErrInvalidReviewPolicy, UserMessage{"Invalid review policy", "Use review_all, review_low_confidence or never", "IMP005", http.StatusBadRequest}},
	{ErrTooManyImports, UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "IMP006", http.StatusServiceUnavailable}},

	// Authorization
	{importer.ErrOrganizationRequired, UserMessage{"Choose the organization to import into", "Pass organizationId with the request", "AUTH001", http.StatusBadRequest}},
	{importer.ErrForbidden, UserMessage{"You are not a member of this organization", "Ask an organization admin for access", "AUTH002", http.StatusForbidden}},
	{ErrUnauthenticated, UserMessage{"You are not signed in", "Sign in and try again", "AUTH003", http.StatusUnauthorized}},
	{teams.ErrNotAuthorized, UserMessage{"Your role cannot create teams", "Ask a coach or admin to create the team first", "AUTH004", http.StatusForbidden}},

	// Teams
	{teams.ErrInvalidPolicy, UserMessage{"Invalid team handling policy", "Use auto_create_silent, auto_create_with_confirmation, require_existing or leave_teamless", "TEAM001", http.StatusBadRequest}},
	{teams.ErrTeamNotFound, UserMessage{"Team does not exist", "Create the team or choose a policy that creates it", "TEAM002", http.StatusNotFound}},

	// Review
	{review.ErrNotFound, UserMessage{"Review item not found", "Refresh the review queue", "REV001", http.StatusNotFound}},
	{review.ErrAlreadyDecided, UserMessage{"This item was already decided", "Refresh the review queue to see the decision", "REV002", http.StatusConflict}},
	{review.ErrSelectionRequired, UserMessage{"No athlete was selected", "Pick one of the suggested athletes", "REV003", http.StatusBadRequest}},
	{review.ErrUnknownAlternative, UserMessage{"The selected athlete was not offered for this item", "Pick one of the suggested athletes", "REV004", http.StatusBadRequest}},
	{review.ErrNoSuggestion, UserMessage{"This item has no suggested athlete to approve", "Select an alternative or reject the item", "REV005", http.StatusUnprocessableEntity}},
	{review.ErrInvalidAction, UserMessage{"Unknown review action", "Use approve, reject or select_alternative", "REV006", http.StatusBadRequest}},

	// Files
	{ErrFileTooLarge, UserMessage{"File exceeds the maximum upload size", "Split the file into smaller files", "FILE001", http.StatusRequestEntityTooLarge}},
	{sheet.ErrUnsupportedFormat, UserMessage{"Unsupported file format", "Upload a .csv or .xlsx file", "FILE002", http.StatusUnsupportedMediaType}},
	{sheet.ErrInvalidCSV, UserMessage{"File is not a valid CSV", "Ensure the file is comma-separated with consistent columns", "FILE003", http.StatusBadRequest}},
	{ErrNoFile, UserMessage{"No file was selected", "Please select a file to upload", "FILE004", http.StatusBadRequest}},
	{sheet.ErrEmptyFile, UserMessage{"The uploaded file is empty", "Upload a file with a header row and data rows", "FILE005", http.StatusBadRequest}},

	// Storage
	{store.ErrConflict, UserMessage{"A record with these values already exists", "Refresh and try again", "DB001", http.StatusConflict}},
	{store.ErrNotFound, UserMessage{"Record not found", "Verify the id is correct", "DB002", http.StatusNotFound}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors that reach us without a sentinel, mostly from
// the database driver and the network.
var errorPatterns = []errorPattern{
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004", http.StatusServiceUnavailable}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005", http.StatusServiceUnavailable}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007", http.StatusServiceUnavailable}},
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "UPL004", 499}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller file or try again later", "UPL005", http.StatusGatewayTimeout}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006", http.StatusGatewayTimeout}},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
	Status:  http.StatusInternalServerError,
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("decide: %w", review.ErrAlreadyDecided))
//	// msg.Code == "REV002"
//	// msg.Status == 409
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range errorSentinels {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with its user message. Error returns the
// user message; Unwrap returns the original error.
type UserError struct {
	UserMessage
	err error
}

// NewUserError wraps err, or returns nil for a nil err.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{UserMessage: MapError(err), err: err}
}

func (e *UserError) Error() string {
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.err
}
