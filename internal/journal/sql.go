package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/labdesk/internal/db"
	"github.com/mind-engage/labdesk/internal/scoring"
)

type SQLStore struct {
	db     *sql.DB
	driver db.Driver
}

func NewSQLStore(conn *sql.DB, driver db.Driver) *SQLStore {
	return &SQLStore{db: conn, driver: driver}
}

// Open connects with the given driver, ensures the schema and returns a store.
func Open(ctx context.Context, driver db.Driver, dsn string) (*SQLStore, error) {
	conn, err := db.Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	return NewSQLStore(conn, driver), nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	ids, err := json.Marshal(e.StudentIDs)
	if err != nil {
		return err
	}
	ok := 0
	if e.OK {
		ok = 1
	}
	_, err = s.db.ExecContext(ctx, db.Rebind(s.driver,
		`INSERT INTO save_journal
		   (id, exercise_id, kind, student_ids, upserted, deleted, ok, error, started_at, finished_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`),
		e.ID, e.ExerciseID, string(e.Kind), string(ids), e.Upserted, e.Deleted, ok, e.Error,
		e.StartedAt.UnixMilli(), e.FinishedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, exerciseID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, db.Rebind(s.driver,
		`SELECT id, exercise_id, kind, student_ids, upserted, deleted, ok, error, started_at, finished_at
		   FROM save_journal
		  WHERE exercise_id = ?
		  ORDER BY started_at DESC, id
		  LIMIT ?`), exerciseID, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e               Entry
			kind, ids       string
			ok              int
			started, finish int64
		)
		if err := rows.Scan(&e.ID, &e.ExerciseID, &kind, &ids, &e.Upserted, &e.Deleted, &ok, &e.Error, &started, &finish); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ids), &e.StudentIDs); err != nil {
			return nil, fmt.Errorf("journal: entry %s: %w", e.ID, err)
		}
		e.Kind = scoring.SaveKind(kind)
		e.OK = ok != 0
		e.StartedAt = time.UnixMilli(started).UTC()
		e.FinishedAt = time.UnixMilli(finish).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
