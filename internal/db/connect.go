package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // driver: mysql
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// ParseDriver maps config spellings to a Driver.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pg", "pgx":
		return DriverPostgres, nil
	case "mysql", "mariadb":
		return DriverMySQL, nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", s)
	}
}

// Open opens a DB, tunes the pool and ensures the journal schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:labdesk.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/labdesk?sslmode=disable"
		}
	case DriverMySQL:
		drvName = "mysql"
		if dsn == "" {
			dsn = "labdesk:labdesk@tcp(localhost:3306)/labdesk?parseTime=true"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	tunePool(driver, db)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	if driver == DriverSQLite {
		if err := applySQLitePragmas(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := ensureSchema(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db: schema: %w", err)
	}
	return db, nil
}

// Rebind rewrites '?' placeholders for drivers that want positional ones.
func Rebind(driver Driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
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

func tunePool(driver Driver, db *sql.DB) {
	maxOpen := 20
	maxIdle := 10
	connLife := 45 * time.Minute
	idleLife := 15 * time.Minute

	switch driver {
	case DriverSQLite:
		// single writer
		maxOpen = 1
		maxIdle = 1
		connLife = 0
		idleLife = 0
	case DriverMySQL:
		maxOpen = 25
		maxIdle = 5
		connLife = 5 * time.Minute
		idleLife = time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connLife)
	db.SetConnMaxIdleTime(idleLife)
}

func applySQLitePragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA temp_store = MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("db: sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

// Statements run one by one: mysql rejects multi-statement Exec by default.
func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var stmts []string
	switch driver {
	case DriverSQLite:
		stmts = schemaSQLite
	case DriverPostgres:
		stmts = schemaPostgres
	case DriverMySQL:
		stmts = schemaMySQL
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

var schemaSQLite = []string{`
CREATE TABLE IF NOT EXISTS save_journal (
  id          TEXT PRIMARY KEY,
  exercise_id INTEGER NOT NULL,
  kind        TEXT NOT NULL,
  student_ids TEXT NOT NULL,
  upserted    INTEGER NOT NULL DEFAULT 0,
  deleted     INTEGER NOT NULL DEFAULT 0,
  ok          INTEGER NOT NULL,
  error       TEXT NOT NULL DEFAULT '',
  started_at  INTEGER NOT NULL,  -- unix millis
  finished_at INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS save_journal_exercise ON save_journal (exercise_id, started_at)`,
}

var schemaPostgres = []string{`
CREATE TABLE IF NOT EXISTS save_journal (
  id          TEXT PRIMARY KEY,
  exercise_id BIGINT NOT NULL,
  kind        TEXT NOT NULL,
  student_ids TEXT NOT NULL,
  upserted    INTEGER NOT NULL DEFAULT 0,
  deleted     INTEGER NOT NULL DEFAULT 0,
  ok          SMALLINT NOT NULL,
  error       TEXT NOT NULL DEFAULT '',
  started_at  BIGINT NOT NULL,
  finished_at BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS save_journal_exercise ON save_journal (exercise_id, started_at)`,
}

var schemaMySQL = []string{`
CREATE TABLE IF NOT EXISTS save_journal (
  id          VARCHAR(36) PRIMARY KEY,
  exercise_id BIGINT NOT NULL,
  kind        VARCHAR(32) NOT NULL,
  student_ids TEXT NOT NULL,
  upserted    INT NOT NULL DEFAULT 0,
  deleted     INT NOT NULL DEFAULT 0,
  ok          TINYINT NOT NULL,
  error       TEXT NOT NULL,
  started_at  BIGINT NOT NULL,
  finished_at BIGINT NOT NULL,
  INDEX save_journal_exercise (exercise_id, started_at)
)`,
}
