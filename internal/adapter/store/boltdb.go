package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"logbook/internal/domain"
	"logbook/internal/port"
)

var (
	bucketEntries = []byte("entries")
	bucketByDate  = []byte("by_date")
	bucketMeta    = []byte("meta")
)

// sortableTime is fixed width so by_date keys order by timestamp within a day.
const sortableTime = "2006-01-02T15:04:05.000000000Z"

type BoltStore struct {
	db *bbolt.DB
}

var _ port.EntryStore = (*BoltStore)(nil)

// NewBoltStore opens (or creates) the entry database at path and brings its schema
// up to date.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketEntries, bucketByDate, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{db: db}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func dateKey(e domain.Entry) []byte {
	return []byte(e.Date + "|" + e.Timestamp.UTC().Format(sortableTime) + "|" + e.ID)
}

func putEntry(tx *bbolt.Tx, e domain.Entry) error {
	entries := tx.Bucket(bucketEntries)
	byDate := tx.Bucket(bucketByDate)

	if old := entries.Get([]byte(e.ID)); old != nil {
		var prev domain.Entry
		if err := json.Unmarshal(old, &prev); err == nil {
			if err := byDate.Delete(dateKey(prev)); err != nil {
				return err
			}
		}
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := entries.Put([]byte(e.ID), data); err != nil {
		return err
	}
	return byDate.Put(dateKey(e), []byte(e.ID))
}

func (s *BoltStore) PutEntries(_ context.Context, batch []domain.Entry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, e := range batch {
			if e.ID == "" {
				return fmt.Errorf("entry without id")
			}
			if _, err := time.Parse(domain.DateLayout, e.Date); err != nil {
				return fmt.Errorf("entry %s: invalid date %q", e.ID, e.Date)
			}
			if err := putEntry(tx, e); err != nil {
				return fmt.Errorf("failed to store entry %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

func (s *BoltStore) GetEntry(_ context.Context, id string) (domain.Entry, error) {
	var e domain.Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEntries).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", port.ErrEntryNotFound, id)
		}
		return json.Unmarshal(data, &e)
	})
	return e, err
}

// scan walks the date index from start to end inclusive. Empty bounds are open.
func (s *BoltStore) scan(ctx context.Context, start, end string, fn func(domain.Entry) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		c := tx.Bucket(bucketByDate).Cursor()

		var k, v []byte
		if start == "" {
			k, v = c.First()
		} else {
			k, v = c.Seek([]byte(start))
		}
		for ; k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			date, _, _ := bytes.Cut(k, []byte("|"))
			if end != "" && string(date) > end {
				break
			}
			data := entries.Get(v)
			if data == nil {
				continue
			}
			var e domain.Entry
			if err := json.Unmarshal(data, &e); err != nil {
				return fmt.Errorf("failed to decode entry %s: %w", v, err)
			}
			if err := fn(e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) GetEntriesByDateRange(ctx context.Context, start, end string) ([]domain.Entry, error) {
	var out []domain.Entry
	err := s.scan(ctx, start, end, func(e domain.Entry) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

func (s *BoltStore) SearchEntries(ctx context.Context, keywords []string, dateRange *domain.DateRange, matchAll bool) ([]domain.Entry, error) {
	if len(keywords) == 0 {
		return nil, port.ErrNoKeywords
	}
	var start, end string
	if dateRange != nil {
		start, end = dateRange.Start, dateRange.End
	}
	var out []domain.Entry
	err := s.scan(ctx, start, end, func(e domain.Entry) error {
		if e.Matches(keywords, matchAll) {
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) Count(_ context.Context) (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketEntries).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
