package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/johnahull/AthleteMetrics-sub002/internal/importer"
	"github.com/johnahull/AthleteMetrics-sub002/internal/review"
	"github.com/johnahull/AthleteMetrics-sub002/internal/sheet"
	"github.com/johnahull/AthleteMetrics-sub002/internal/store"
	"github.com/johnahull/AthleteMetrics-sub002/internal/teams"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:       "row cap",
			err:        fmt.Errorf("%w: 2001 rows exceeds the limit of 2000", importer.ErrTooManyRows),
			wantCode:   "IMP001",
			wantStatus: http.StatusRequestEntityTooLarge,
		},
		{
			name:       "busy limiter",
			err:        ErrTooManyImports,
			wantCode:   "IMP006",
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "foreign organization",
			err:        fmt.Errorf("%w: orgZ", importer.ErrForbidden),
			wantCode:   "AUTH002",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "team creation not allowed",
			err:        fmt.Errorf("resolve: %w", teams.ErrNotAuthorized),
			wantCode:   "AUTH004",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "already decided",
			err:        fmt.Errorf("decide: %w", review.ErrAlreadyDecided),
			wantCode:   "REV002",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "review item missing before generic not found",
			err:        review.ErrNotFound,
			wantCode:   "REV001",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "empty file",
			err:        sheet.ErrEmptyFile,
			wantCode:   "FILE005",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "joined store conflict",
			err:        errors.Join(store.ErrConflict, errors.New("duplicate key value violates unique constraint")),
			wantCode:   "DB001",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "connection refused pattern",
			err:        errors.New("dial tcp: connection refused"),
			wantCode:   "DB004",
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "deadline before generic timeout",
			err:        errors.New("context deadline exceeded"),
			wantCode:   "UPL005",
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "case insensitive matching",
			err:        errors.New("DEADLOCK detected"),
			wantCode:   "DB007",
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "unknown error returns default",
			err:        errors.New("some random internal error"),
			wantCode:   "ERR000",
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("MapError() status = %d, want %d", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestErrorCodesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, s := range errorSentinels {
		if seen[s.msg.Code] {
			t.Errorf("duplicate code %s", s.msg.Code)
		}
		seen[s.msg.Code] = true
		if s.msg.Message == "" || s.msg.Action == "" || s.msg.Status == 0 {
			t.Errorf("%s: incomplete message %+v", s.msg.Code, s.msg)
		}
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(review.ErrAlreadyDecided)

	expected := "This item was already decided (Code: REV002). Refresh the review queue to see the decision"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"sentinel is user facing", teams.ErrTeamNotFound, true},
		{"pattern is user facing", errors.New("connection reset by peer"), true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("select: %w", review.ErrNoSuggestion)
		userErr := NewUserError(techErr)

		if userErr.Error() != "This item has no suggested athlete to approve" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, review.ErrNoSuggestion) {
			t.Error("Unwrap() should return original error")
		}
	})
}
