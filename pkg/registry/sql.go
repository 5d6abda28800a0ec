package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stormsure/marketplace/pkg/model"
)

// SQLStore implements Store using database/sql. It works with both Postgres
// and SQLite through standard drivers; both accept $N placeholders. Records
// are versioned rows: updates bump the version counter, so the backing table
// doubles as a coarse change log.
type SQLStore struct {
	db    *sql.DB
	clock func() time.Time
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, clock: time.Now}
}

// WithClock overrides the row-timestamp clock for testing.
func (s *SQLStore) WithClock(clock func() time.Time) *SQLStore {
	s.clock = clock
	return s
}

const recordSchema = `
CREATE TABLE IF NOT EXISTS records (
	kind TEXT NOT NULL,
	id TEXT NOT NULL,
	body TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (kind, id)
);
`

// Init creates the records table if it does not exist.
func (s *SQLStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, recordSchema)
	return err
}

func (s *SQLStore) Get(ctx context.Context, kind model.Kind, id string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT body FROM records WHERE kind = $1 AND id = $2`, string(kind), id)

	var body []byte
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
		}
		return nil, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	return body, nil
}

func (s *SQLStore) List(ctx context.Context, kind model.Kind) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM records WHERE kind = $1 ORDER BY id ASC`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([][]byte, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		out = append(out, body)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Apply commits the write set inside one database transaction.
func (s *SQLStore) Apply(ctx context.Context, set *WriteSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write set: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.clock().UTC()
	for _, w := range set.Writes() {
		switch w.Op {
		case OpAdd:
			if err := s.applyAdd(ctx, tx, w, now); err != nil {
				return err
			}
		case OpUpdate:
			if err := s.applyUpdate(ctx, tx, w, now); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown write op %q", w.Op)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) applyAdd(ctx context.Context, tx *sql.Tx, w Write, now time.Time) error {
	var exists int
	row := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM records WHERE kind = $1 AND id = $2`, string(w.Kind), w.ID)
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("add %s %s: %w", w.Kind, w.ID, err)
	}
	if exists > 0 {
		return fmt.Errorf("%s %s: %w", w.Kind, w.ID, ErrConflict)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO records (kind, id, body, version, created_at, updated_at)
		 VALUES ($1, $2, $3, 1, $4, $5)`,
		string(w.Kind), w.ID, w.Data, now, now)
	if err != nil {
		return fmt.Errorf("add %s %s: %w", w.Kind, w.ID, err)
	}
	return nil
}

func (s *SQLStore) applyUpdate(ctx context.Context, tx *sql.Tx, w Write, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE records SET body = $1, version = version + 1, updated_at = $2
		 WHERE kind = $3 AND id = $4`,
		w.Data, now, string(w.Kind), w.ID)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", w.Kind, w.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s %s: %w", w.Kind, w.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", w.Kind, w.ID, ErrNotFound)
	}
	return nil
}
