package usecase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"logbook/internal/domain"
	"logbook/internal/logger"
	"logbook/internal/port"
)

const importBatchSize = 100

// ErrEmptyEntry is returned when a note has no content.
var ErrEmptyEntry = errors.New("entry content is empty")

// LogUseCase records notes in the entry store.
type LogUseCase struct {
	store port.EntryStore
	now   func() time.Time
	newID func() string
}

type LogOption func(*LogUseCase)

// WithLogClock sets the clock used for dates and timestamps.
func WithLogClock(now func() time.Time) LogOption {
	return func(u *LogUseCase) { u.now = now }
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(f func() string) LogOption {
	return func(u *LogUseCase) { u.newID = f }
}

// NewLogUseCase creates a new log use case.
func NewLogUseCase(store port.EntryStore, opts ...LogOption) *LogUseCase {
	u := &LogUseCase{store: store, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Log stores one note. date is optional and defaults to today in local time.
func (u *LogUseCase) Log(ctx context.Context, content, date string) (domain.Entry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Entry{}, ErrEmptyEntry
	}
	now := u.now()
	if date == "" {
		date = now.Format(domain.DateLayout)
	} else if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return domain.Entry{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", date)
	}

	e := domain.Entry{ID: u.newID(), Date: date, Timestamp: now, RawContent: content}
	if err := u.store.PutEntries(ctx, []domain.Entry{e}); err != nil {
		return domain.Entry{}, fmt.Errorf("failed to store entry: %w", err)
	}
	logger.Debug("entry logged", "id", e.ID, "date", e.Date)
	return e, nil
}

// ImportResult contains the results of an import.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []string
}

// Import reads JSON lines and stores them in batches. Each line needs a date and the
// content under raw_content, content or text; id and timestamp are filled in when
// absent. Bad lines are skipped and reported. onProgress, if set, receives the number
// of lines read so far.
func (u *LogUseCase) Import(ctx context.Context, r io.Reader, onProgress func(lines int)) (*ImportResult, error) {
	result := &ImportResult{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	batch := make([]domain.Entry, 0, importBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := u.store.PutEntries(ctx, batch); err != nil {
			return fmt.Errorf("failed to store batch: %w", err)
		}
		result.Imported += len(batch)
		batch = batch[:0]
		return nil
	}

	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		e, err := u.parseLine(line)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNo, err))
		} else {
			batch = append(batch, e)
		}
		if len(batch) == importBatchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
		if onProgress != nil {
			onProgress(lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to read input: %w", err)
	}
	if err := flush(); err != nil {
		return result, err
	}
	logger.Info("import finished", "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

func (u *LogUseCase) parseLine(line string) (domain.Entry, error) {
	if !gjson.Valid(line) {
		return domain.Entry{}, errors.New("not valid JSON")
	}
	doc := gjson.Parse(line)

	content := strings.TrimSpace(doc.Get("raw_content").String())
	if content == "" {
		content = strings.TrimSpace(doc.Get("content").String())
	}
	if content == "" {
		content = strings.TrimSpace(doc.Get("text").String())
	}
	if content == "" {
		return domain.Entry{}, ErrEmptyEntry
	}

	e := domain.Entry{
		ID:         doc.Get("id").String(),
		Date:       doc.Get("date").String(),
		RawContent: content,
	}
	if e.ID == "" {
		e.ID = u.newID()
	}
	if ts := doc.Get("timestamp").String(); ts != "" {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return domain.Entry{}, fmt.Errorf("invalid timestamp %q", ts)
		}
		e.Timestamp = parsed
	}
	if e.Date == "" && !e.Timestamp.IsZero() {
		e.Date = e.Timestamp.Format(domain.DateLayout)
	}
	day, err := time.ParseInLocation(domain.DateLayout, e.Date, time.Local)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("invalid date %q", e.Date)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = day
	}
	if pd, ok := doc.Get("parsed_data").Value().(map[string]any); ok {
		e.ParsedData = pd
	}
	return e, nil
}
