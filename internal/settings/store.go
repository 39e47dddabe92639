package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"sam/internal/fileutil"
	"sam/internal/logging"
)

// Change describes one committed key update delivered to subscribers.
type Change struct {
	Key string
	Old any
	New any
}

// Store owns the settings file. Reads are lock-free snapshots; writes are
// serialized and persisted before they become visible.
type Store struct {
	path    string
	logger  *slog.Logger
	current atomic.Pointer[Values]

	mu sync.Mutex

	subsMu sync.RWMutex
	subs   []func(Change)

	now func() time.Time
}

// Load reads path, merging it over defaults. Missing, unparseable or
// out-of-range entries are repaired and the file is rewritten.
func Load(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logging.NewComponentLogger(logger, "settings"),
		now:    time.Now,
	}

	values, repaired, err := s.read()
	if err != nil {
		return nil, err
	}
	s.current.Store(&values)

	if repaired {
		if err := s.persist(values); err != nil {
			logging.WarnWithContext(s.logger, "settings file not rewritten", "settings_persist_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "defaults apply for this run only"),
			)
		}
	}
	return s, nil
}

func (s *Store) read() (Values, bool, error) {
	values := Defaults()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("settings file missing; using defaults", logging.String("path", s.path))
			return values, true, nil
		}
		return values, false, fmt.Errorf("read settings: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		logging.WarnWithContext(s.logger, "settings file unreadable; using defaults", "settings_invalid",
			logging.String("path", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "previous settings are replaced by defaults"),
		)
		return values, true, nil
	}

	repaired := false
	for i := range fields {
		f := &fields[i]
		value, ok := raw[f.key]
		if !ok {
			repaired = true
			continue
		}
		coerced, err := f.coerce(value)
		if err != nil {
			s.logger.Warn("setting reverted to default",
				logging.String("key", f.key),
				logging.String("reason", err.Error()),
				logging.String(logging.FieldEventType, "setting_repaired"),
			)
			repaired = true
			continue
		}
		if !sameValue(value, coerced) {
			repaired = true
		}
		f.set(&values, coerced)
	}
	return values, repaired, nil
}

func sameValue(raw, coerced any) bool {
	if n, ok := coerced.(int); ok {
		f, isFloat := raw.(float64)
		return isFloat && f == float64(n)
	}
	return raw == coerced
}

// Path returns the settings file location.
func (s *Store) Path() string { return s.path }

// Get returns the current snapshot.
func (s *Store) Get() Values {
	return *s.current.Load()
}

// OnChange registers fn to run after every committed change, once per key.
// Callbacks run on the writer's goroutine after the write lock is released.
func (s *Store) OnChange(fn func(Change)) {
	if fn == nil {
		return
	}
	s.subsMu.Lock()
	s.subs = append(s.subs, fn)
	s.subsMu.Unlock()
}

// Set updates a single key.
func (s *Store) Set(key string, value any) error {
	return s.UpdateMany(map[string]any{key: value})
}

// UpdateMany applies every update or none of them.
func (s *Store) UpdateMany(updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	keys := make([]string, 0, len(updates))
	for key := range updates {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	s.mu.Lock()
	prev := s.current.Load()
	next := *prev
	for _, key := range keys {
		f, ok := fieldIndex[key]
		if !ok {
			s.mu.Unlock()
			return &ValidationError{Key: key, Err: ErrUnknownKey}
		}
		coerced, err := f.coerce(updates[key])
		if err != nil {
			s.mu.Unlock()
			return &ValidationError{Key: key, Reason: err.Error(), Err: ErrInvalidValue}
		}
		f.set(&next, coerced)
	}
	changes, err := s.commitLocked(prev, next)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(changes)
	return nil
}

// Reset restores factory defaults.
func (s *Store) Reset() error {
	s.mu.Lock()
	changes, err := s.commitLocked(s.current.Load(), Defaults())
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.logger.Info("settings reset to defaults", logging.Int("changed", len(changes)))
	s.notify(changes)
	return nil
}

func (s *Store) commitLocked(prev *Values, next Values) ([]Change, error) {
	if err := s.persist(next); err != nil {
		return nil, fmt.Errorf("persist settings: %w", err)
	}
	s.current.Store(&next)

	var changes []Change
	for _, f := range fields {
		oldValue, newValue := f.get(prev), f.get(&next)
		if oldValue != newValue {
			changes = append(changes, Change{Key: f.key, Old: oldValue, New: newValue})
		}
	}
	return changes, nil
}

func (s *Store) notify(changes []Change) {
	if len(changes) == 0 {
		return
	}
	s.subsMu.RLock()
	subs := append([]func(Change){}, s.subs...)
	s.subsMu.RUnlock()
	for _, change := range changes {
		s.logger.Debug("setting changed",
			logging.String("key", change.Key),
			logging.Any("value", change.New),
		)
		for _, fn := range subs {
			fn(change)
		}
	}
}

func (s *Store) persist(values Values) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(s.path, append(data, '\n'), 0o644)
}

// Export writes the current settings to a timestamped file in dir and
// returns its path.
func (s *Store) Export(dir string) (string, error) {
	values := s.Get()
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	name := "settings_backup_" + s.now().Format("20060102_150405") + ".json"
	path := filepath.Join(dir, name)
	if err := fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("export settings: %w", err)
	}
	s.logger.Info("settings exported", logging.String("path", path))
	return path, nil
}

// Import applies recognized keys from a JSON file and returns how many were
// applied. Unknown keys are dropped.
func (s *Store) Import(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read settings import: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("parse settings import: %w", err)
	}
	known := make(map[string]any, len(raw))
	for key, value := range raw {
		if IsKnown(key) {
			known[key] = value
		}
	}
	if len(known) == 0 {
		return 0, ErrNoRecognizedKeys
	}
	if err := s.UpdateMany(known); err != nil {
		return 0, err
	}
	s.logger.Info("settings imported",
		logging.String("path", path),
		logging.Int("applied", len(known)),
		logging.Int("ignored", len(raw)-len(known)),
	)
	return len(known), nil
}
