package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTranslate(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, ErrNotFound},
		{"wrapped no rows", fmt.Errorf("get: %w", pgx.ErrNoRows), ErrNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, ErrConflict},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, ErrNotFound},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, nil},
		{"other error", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.in)
			if tt.in == nil {
				if got != nil {
					t.Errorf("translate(nil) = %v", got)
				}
				return
			}
			if tt.want == nil {
				if errors.Is(got, ErrNotFound) || errors.Is(got, ErrConflict) {
					t.Errorf("translate() = %v, want untranslated", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("translate() = %v, want %v", got, tt.want)
			}
			if !errors.Is(got, tt.in) {
				t.Errorf("translate() dropped the original error")
			}
		})
	}
}
