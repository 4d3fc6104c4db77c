package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB represents the database connection
type DB struct {
	conn   *sql.DB
	driver string
}

// DriverFor picks the driver for a connection string. PostgreSQL URLs and
// keyword/value strings ("host=... dbname=...") select lib/pq; anything
// else is treated as a SQLite file path.
func DriverFor(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DriverPostgres
	case strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname="):
		return DriverPostgres
	default:
		return DriverSQLite
	}
}

// New opens and pings the database named by dsn
func New(dsn string) (*DB, error) {
	driver := DriverFor(dsn)
	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// one writer at a time
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn, driver: driver}, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Driver returns the driver name in use
func (db *DB) Driver() string {
	return db.driver
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
