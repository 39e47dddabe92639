package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"sam/internal/logging"
)

// Outcome is the business result of a scan.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeDuplicate Outcome = "duplicate"
)

// Record is one attendance row. Date and Time are rendered with the
// formats in effect when the row was written.
type Record struct {
	Date string `json:"date"`
	Time string `json:"time"`
	Name string `json:"name"`
}

// Stats summarizes today's attendance.
type Stats struct {
	Date    string   `json:"date"`
	Count   int      `json:"scan_count"`
	Records []Record `json:"records"`
}

// Result reports what Record did.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
	Record  Record  `json:"record"`
	Stats   Stats   `json:"stats"`
}

// Key addresses one cell of the daily grid.
type Key struct {
	Date string
	Name string
}

// NormalizeName trims surrounding whitespace and applies NFC so visually
// identical names from different input paths compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Record stores an attendance event for name at the current time.
func (s *Store) Record(ctx context.Context, name string) (Result, error) {
	ctx = ensureContext(ctx)
	name = NormalizeName(name)
	if name == "" {
		return Result{}, ErrEmptyName
	}
	if err := s.checkOpen(); err != nil {
		return Result{}, err
	}

	values := s.settings.Get()
	now := s.now()
	rec := Record{
		Date: values.FormatDate(now),
		Time: values.FormatTime(now),
		Name: name,
	}

	// Fast path only; the insert below decides.
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM attendance WHERE date = ? AND name = ?", rec.Date, rec.Name,
	).Scan(&exists)
	switch {
	case err == nil:
		return s.duplicate(rec, name+" already scanned today"), nil
	case !errors.Is(err, sql.ErrNoRows):
		return Result{}, storageErr("lookup", err)
	}

	res, err := s.execWithRetry(ctx,
		"INSERT INTO attendance (date, time, name) VALUES (?, ?, ?) ON CONFLICT(date, name) DO NOTHING",
		rec.Date, rec.Time, rec.Name,
	)
	if err != nil {
		return Result{}, storageErr("insert", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Result{}, storageErr("insert", err)
	}
	if affected == 0 {
		return s.duplicate(rec, name+" already recorded today"), nil
	}

	stats, err := s.LoadToday(ctx)
	if err != nil {
		// The row is committed; serve the cache plus the new record.
		logging.WarnWithContext(s.logger, "today reload failed after insert", "attendance_reload_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "today's list may lag until the next reload"),
		)
		stats = s.appendCached(rec)
	}
	s.logger.Info("attendance recorded",
		logging.String(logging.FieldPayload, rec.Name),
		logging.String(logging.FieldDate, rec.Date),
		logging.String("time", rec.Time),
		logging.String(logging.FieldEventType, "attendance_recorded"),
	)
	return Result{
		Outcome: OutcomeSuccess,
		Message: fmt.Sprintf("Attendance of %s recorded!", name),
		Record:  rec,
		Stats:   stats,
	}, nil
}

func (s *Store) duplicate(rec Record, message string) Result {
	s.logger.Debug("duplicate scan ignored",
		logging.String(logging.FieldPayload, rec.Name),
		logging.String(logging.FieldDate, rec.Date),
	)
	return Result{Outcome: OutcomeDuplicate, Message: message, Record: rec, Stats: s.Today()}
}

func (s *Store) appendCached(rec Record) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.today.Date != rec.Date {
		s.today = Stats{Date: rec.Date}
	}
	s.today.Records = append(s.today.Records, rec)
	s.today.Count = len(s.today.Records)
	return s.today.clone()
}

// LoadToday reloads today's records in scan order and refreshes the cache.
func (s *Store) LoadToday(ctx context.Context) (Stats, error) {
	date := s.settings.Get().FormatDate(s.now())
	records, err := s.ByDate(ctx, date)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Date: date, Count: len(records), Records: records}

	s.mu.Lock()
	s.today = stats
	s.mu.Unlock()
	return stats.clone(), nil
}

// Today returns the cached stats from the last load.
func (s *Store) Today() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.today.clone()
}

// ByDate lists records for one date string in scan order. Rows are never
// updated, so rowid order is chronological whatever time_format renders.
func (s *Store) ByDate(ctx context.Context, date string) ([]Record, error) {
	ctx = ensureContext(ctx)
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT date, time, name FROM attendance WHERE date = ? ORDER BY rowid", date)
	if err != nil {
		return nil, storageErr("query", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Lookup returns the recorded time for every (date, name) on the given dates.
func (s *Store) Lookup(ctx context.Context, dates []string) (map[Key]string, error) {
	ctx = ensureContext(ctx)
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make(map[Key]string)
	if len(dates) == 0 {
		return out, nil
	}
	args := make([]any, len(dates))
	for i, date := range dates {
		args[i] = date
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT date, time, name FROM attendance WHERE date IN ("+makePlaceholders(len(dates))+")", args...)
	if err != nil {
		return nil, storageErr("lookup", err)
	}
	defer rows.Close()
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		out[Key{Date: rec.Date, Name: rec.Name}] = rec.Time
	}
	return out, nil
}

// Dates lists distinct recorded dates, most recent insert first.
func (s *Store) Dates(ctx context.Context, limit int) ([]string, error) {
	ctx = ensureContext(ctx)
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 31
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT date FROM attendance GROUP BY date ORDER BY MAX(rowid) DESC LIMIT ?", limit)
	if err != nil {
		return nil, storageErr("dates", err)
	}
	defer rows.Close()
	var dates []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, storageErr("dates", err)
		}
		dates = append(dates, date)
	}
	return dates, storageErr("dates", rows.Err())
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Date, &rec.Time, &rec.Name); err != nil {
			return nil, storageErr("scan", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("scan", err)
	}
	return records, nil
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func (st Stats) clone() Stats {
	st.Records = append([]Record(nil), st.Records...)
	return st
}
