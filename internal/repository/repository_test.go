package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("40001"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConflict(tt.err); got != tt.want {
				t.Errorf("isConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	for _, name := range []string{
		"migrations/000001_lists.up.sql",
		"migrations/000001_lists.down.sql",
		"migrations/000002_users.up.sql",
		"migrations/000002_users.down.sql",
	} {
		if _, err := migrationFS.ReadFile(name); err != nil {
			t.Errorf("missing embedded migration %s: %v", name, err)
		}
	}
}
