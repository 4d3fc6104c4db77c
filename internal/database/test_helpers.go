package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setupTestDB returns a connection string for an isolated test database.
// It is a SQLite file in a temp dir unless TEST_DB_DRIVER=postgres, in which
// case a throwaway PostgreSQL database is created from the TEST_DB_* env
// vars. PostgreSQL tests skip when the server is unreachable.
func setupTestDB(t *testing.T, testName string) (connStr string, cleanup func()) {
	t.Helper()

	if os.Getenv("TEST_DB_DRIVER") != DriverPostgres {
		return filepath.Join(t.TempDir(), testName+".db"), func() {}
	}

	host := getEnvOrDefault("TEST_DB_HOST", "localhost")
	port := getEnvOrDefault("TEST_DB_PORT", "5432")
	user := getEnvOrDefault("TEST_DB_USER", "postgres")
	password := getEnvOrDefault("TEST_DB_PASSWORD", "postgres")

	dbName := strings.ToLower(fmt.Sprintf("test_%s_%d", testName, time.Now().UnixNano()))
	adminConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=postgres sslmode=disable",
		host, port, user, password)

	adminDB, err := sql.Open(DriverPostgres, adminConnStr)
	if err != nil {
		t.Skipf("Could not connect to PostgreSQL for testing: %v", err)
	}
	defer adminDB.Close()

	if err := adminDB.Ping(); err != nil {
		t.Skipf("Could not ping PostgreSQL for testing: %v", err)
	}
	if _, err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		t.Skipf("Could not create test database: %v", err)
	}

	testConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbName)

	cleanup = func() {
		adminDB, err := sql.Open(DriverPostgres, adminConnStr)
		if err != nil {
			return
		}
		defer adminDB.Close()

		adminDB.Exec(fmt.Sprintf("SELECT pg_terminate_backend(pg_stat_activity.pid) FROM pg_stat_activity WHERE pg_stat_activity.datname = '%s'", dbName))
		adminDB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName))
	}

	return testConnStr, cleanup
}

// NewTestDB opens a migrated SQLite database in a temp dir for tests in
// other packages
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "reviewxai.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
