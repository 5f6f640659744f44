// Package sqlstore keeps entries in a SQLite database.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"logbook/internal/domain"
	"logbook/internal/port"
	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"
)

const sortableTime = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id          TEXT PRIMARY KEY,
	date        TEXT NOT NULL,
	timestamp   TEXT NOT NULL,
	raw_content TEXT NOT NULL,
	parsed_data TEXT
);
CREATE INDEX IF NOT EXISTS entries_by_date ON entries (date, timestamp, id);
`

var entryColumns = []string{"id", "date", "timestamp", "raw_content", "parsed_data"}

type Store struct {
	db *sql.DB
}

var _ port.EntryStore = (*Store)(nil)

// Open opens the database at path and creates the schema if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) PutEntries(ctx context.Context, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("entry without id")
		}
		if _, err := time.Parse(domain.DateLayout, e.Date); err != nil {
			return fmt.Errorf("entry %s: invalid date %q", e.ID, e.Date)
		}
		var parsed any
		if len(e.ParsedData) > 0 {
			data, err := json.Marshal(e.ParsedData)
			if err != nil {
				return fmt.Errorf("entry %s: encode parsed data: %w", e.ID, err)
			}
			parsed = string(data)
		}
		query, args, err := squirrel.Insert("entries").
			Columns(entryColumns...).
			Values(e.ID, e.Date, e.Timestamp.UTC().Format(sortableTime), e.RawContent, parsed).
			Suffix("ON CONFLICT(id) DO UPDATE SET date = excluded.date, timestamp = excluded.timestamp, " +
				"raw_content = excluded.raw_content, parsed_data = excluded.parsed_data").
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("sqlite: store entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetEntry(ctx context.Context, id string) (domain.Entry, error) {
	entries, err := s.query(ctx, squirrel.Select(entryColumns...).From("entries").Where(squirrel.Eq{"id": id}))
	if err != nil {
		return domain.Entry{}, err
	}
	if len(entries) == 0 {
		return domain.Entry{}, fmt.Errorf("%w: %s", port.ErrEntryNotFound, id)
	}
	return entries[0], nil
}

func dateBounds(qb squirrel.SelectBuilder, start, end string) squirrel.SelectBuilder {
	if start != "" {
		qb = qb.Where(squirrel.GtOrEq{"date": start})
	}
	if end != "" {
		qb = qb.Where(squirrel.LtOrEq{"date": end})
	}
	return qb
}

func (s *Store) GetEntriesByDateRange(ctx context.Context, start, end string) ([]domain.Entry, error) {
	qb := dateBounds(squirrel.Select(entryColumns...).From("entries"), start, end)
	return s.query(ctx, qb)
}

func (s *Store) SearchEntries(ctx context.Context, keywords []string, dateRange *domain.DateRange, matchAll bool) ([]domain.Entry, error) {
	var conds []squirrel.Sqlizer
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		conds = append(conds, squirrel.Expr("instr(lower(raw_content), ?) > 0", kw))
	}
	if len(conds) == 0 {
		return nil, port.ErrNoKeywords
	}

	qb := squirrel.Select(entryColumns...).From("entries")
	if dateRange != nil {
		qb = dateBounds(qb, dateRange.Start, dateRange.End)
	}
	if matchAll {
		qb = qb.Where(squirrel.And(conds))
	} else {
		qb = qb.Where(squirrel.Or(conds))
	}
	return s.query(ctx, qb)
}

func (s *Store) query(ctx context.Context, qb squirrel.SelectBuilder) ([]domain.Entry, error) {
	query, args, err := qb.OrderBy("date", "timestamp", "id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query entries: %w", err)
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		var (
			e      domain.Entry
			ts     string
			parsed sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Date, &ts, &e.RawContent, &parsed); err != nil {
			return nil, fmt.Errorf("sqlite: scan entry: %w", err)
		}
		if e.Timestamp, err = time.Parse(sortableTime, ts); err != nil {
			return nil, fmt.Errorf("entry %s: bad timestamp %q: %w", e.ID, ts, err)
		}
		if parsed.Valid && parsed.String != "" {
			if err := json.Unmarshal([]byte(parsed.String), &e.ParsedData); err != nil {
				return nil, fmt.Errorf("entry %s: decode parsed data: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

func (s *Store) Clear(ctx context.Context) error {
	query, args, err := squirrel.Delete("entries").ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
