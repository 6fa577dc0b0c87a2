package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/smstodo/smstodo/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// schemaMigrations are applied in order by ResetSchema; downs run in reverse.
var schemaMigrations = []string{"000001_lists", "000002_users"}

// ResetSchema drops and recreates the lists and users tables.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}
	dir := filepath.Join(root, "internal", "repository", "migrations")

	for i := len(schemaMigrations) - 1; i >= 0; i-- {
		if err := execFile(ctx, pool, filepath.Join(dir, schemaMigrations[i]+".down.sql")); err != nil {
			return err
		}
	}
	for _, name := range schemaMigrations {
		if err := execFile(ctx, pool, filepath.Join(dir, name+".up.sql")); err != nil {
			return err
		}
	}
	return nil
}

func execFile(ctx context.Context, pool *pgxpool.Pool, path string) error {
	sql, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", filepath.Base(path), err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply migration %s: %w", filepath.Base(path), err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

var phoneSeq atomic.Int64

// UniquePhone returns a distinct valid US number in E.164 form for each call.
func UniquePhone() string {
	n := phoneSeq.Add(1) % 10000
	return fmt.Sprintf("+1650253%04d", n)
}

// NewTestList creates a list owned by creator with the given extra members.
func NewTestList(t testing.TB, id, alias, creator string, others ...string) *model.List {
	t.Helper()
	return &model.List{
		ID:           id,
		Alias:        alias,
		Members:      append([]string{creator}, others...),
		Tasks:        []string{},
		CreatedBy:    creator,
		CreatedAt:    time.Now().UTC(),
		VonageNumber: "+16502530999",
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
