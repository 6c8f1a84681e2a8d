package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/onnwee/herald/db"
)

// PostgresDSNEnv names the variable pointing the Postgres settings store tests at a server.
const PostgresDSNEnv = "HERALD_TEST_PG_DSN"

// OpenPostgres returns a migrated connection for settings store tests, skipping
// the test when no server is configured. The given kv keys are removed before
// the test runs and again on cleanup, so runs against a shared database start empty.
func OpenPostgres(t *testing.T, keys ...string) *sql.DB {
	t.Helper()
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping postgres settings store test", PostgresDSNEnv)
	}
	ctx := context.Background()
	conn, err := db.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect settings database: %v", err)
	}
	if err := db.Migrate(ctx, conn); err != nil {
		_ = conn.Close()
		t.Fatalf("migrate settings database: %v", err)
	}
	purge := func() {
		for _, k := range keys {
			if _, err := conn.ExecContext(context.Background(), `DELETE FROM kv WHERE key=$1`, k); err != nil {
				t.Logf("clear kv %q: %v", k, err)
			}
		}
	}
	purge()
	t.Cleanup(func() {
		purge()
		_ = conn.Close()
	})
	return conn
}
