// Package roster persists enrolled students and their reference photos in a
// flat JSON file.
package roster

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/h2non/filetype"
	"github.com/kozaktomas/face-attendance/internal/domain"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "roster")

// Store is the file-backed roster. It is safe for concurrent use: enrollment
// from the control API may run while a camera session reads All().
type Store struct {
	path    string
	mu      sync.RWMutex
	records []StudentRecord
	version uint64
}

// New creates a store for the given file without reading it.
func New(path string) *Store {
	return &Store{path: path}
}

// Open creates a store and loads it. The store is always returned; a non-nil
// error wrapping domain.ErrDataCorruption means the file was malformed and
// the roster starts empty.
func Open(path string) (*Store, error) {
	s := New(path)
	return s, s.Load()
}

// Path returns the roster file location.
func (s *Store) Path() string {
	return s.path
}

// Load (re)reads the roster file. A missing file yields an empty roster. A
// malformed file yields an empty roster and an ErrDataCorruption error;
// nothing from a partially valid file is kept.
func (s *Store) Load() error {
	records, err := readRecords(s.path)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++

	if err != nil {
		s.records = nil
		log.WithField("path", s.path).Warnf("roster: %v, starting with an empty roster", err)
		return err
	}

	s.records = records
	log.WithField("path", s.path).Debugf("roster: loaded %d students", len(records))
	return nil
}

func readRecords(path string) ([]StudentRecord, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w: %w", path, domain.ErrDataCorruption, err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w: %w", path, domain.ErrDataCorruption, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("roster %s is not a list: %w", path, domain.ErrDataCorruption)
	}

	records := make([]StudentRecord, 0, len(raw))
	for i, entry := range raw {
		rec, err := recordFromJSON(entry)
		if err != nil {
			return nil, fmt.Errorf("roster %s entry %d: %w: %w", path, i, domain.ErrDataCorruption, err)
		}
		records = upsert(records, rec)
	}
	return records, nil
}

// recordFromJSON validates one decoded roster entry.
func recordFromJSON(entry map[string]any) (StudentRecord, error) {
	if entry == nil {
		return StudentRecord{}, errors.New("entry is not an object")
	}
	name, ok := entry["Student Name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return StudentRecord{}, errors.New(`missing or empty "Student Name"`)
	}
	photo, ok := entry["Photo Path"].(string)
	if !ok || photo == "" {
		return StudentRecord{}, errors.New(`missing or empty "Photo Path"`)
	}
	return StudentRecord{Name: strings.TrimSpace(name), PhotoPath: photo}, nil
}

// upsert replaces the record with the same identity in place or appends it.
func upsert(records []StudentRecord, rec StudentRecord) []StudentRecord {
	key := rec.Key()
	for i := range records {
		if records[i].Key() == key {
			records[i] = rec
			return records
		}
	}
	return append(records, rec)
}

// Enroll adds a student, or replaces the photo of an already enrolled
// identity, and persists the whole roster before returning.
func (s *Store) Enroll(name, photoPath string) (StudentRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return StudentRecord{}, fmt.Errorf("enroll: student name is empty: %w", domain.ErrInvalidInput)
	}
	abs, err := validatePhoto(photoPath)
	if err != nil {
		return StudentRecord{}, fmt.Errorf("enroll %s: %w", name, err)
	}
	rec := StudentRecord{Name: name, PhotoPath: abs}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous := append([]StudentRecord(nil), s.records...)
	s.records = upsert(s.records, rec)
	if err := writeRecords(s.path, s.records); err != nil {
		s.records = previous
		return StudentRecord{}, fmt.Errorf("enroll %s: %w", name, err)
	}
	s.version++

	log.WithFields(logrus.Fields{"student": name, "photo": abs}).Info("roster: student enrolled")
	return rec, nil
}

// Remove deletes an identity from the roster and persists the change.
func (s *Store) Remove(name string) error {
	key := NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.records {
		if s.records[i].Key() == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("remove %q: not enrolled: %w", name, domain.ErrInvalidInput)
	}

	next := make([]StudentRecord, 0, len(s.records)-1)
	next = append(next, s.records[:idx]...)
	next = append(next, s.records[idx+1:]...)
	if err := writeRecords(s.path, next); err != nil {
		return fmt.Errorf("remove %q: %w", name, err)
	}
	s.records = next
	s.version++

	log.WithField("student", name).Info("roster: student removed")
	return nil
}

// All returns a snapshot of the roster in enumeration order.
func (s *Store) All() []StudentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]StudentRecord(nil), s.records...)
}

// Get looks a student up by identity. The lookup ignores case and accents.
func (s *Store) Get(name string) (StudentRecord, bool) {
	key := SearchKey(name)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if SearchKey(rec.Name) == key {
			return rec, true
		}
	}
	return StudentRecord{}, false
}

// Len returns the number of enrolled students.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Version changes on every successful mutation and reload.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// validatePhoto checks that the path is a readable image and returns it absolute.
func validatePhoto(photoPath string) (string, error) {
	if strings.TrimSpace(photoPath) == "" {
		return "", fmt.Errorf("photo path is empty: %w", domain.ErrInvalidInput)
	}
	abs, err := filepath.Abs(photoPath)
	if err != nil {
		return "", fmt.Errorf("resolve photo path: %w: %w", domain.ErrInvalidInput, err)
	}

	f, err := os.Open(abs) //nolint:gosec // path is chosen by the operator
	if err != nil {
		return "", fmt.Errorf("open photo: %w: %w", domain.ErrInvalidInput, err)
	}
	defer f.Close()

	head := make([]byte, 261)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read photo: %w: %w", domain.ErrInvalidInput, err)
	}
	if !filetype.IsImage(head[:n]) {
		return "", fmt.Errorf("photo %s is not an image: %w", filepath.Base(abs), domain.ErrInvalidInput)
	}
	return abs, nil
}

// writeRecords overwrites the roster file atomically: the JSON goes to a
// temp file in the same directory which is then renamed over the target.
func writeRecords(path string, records []StudentRecord) error {
	if records == nil {
		records = []StudentRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp roster: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp roster: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp roster: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp roster: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace roster: %w", err)
	}
	return nil
}
