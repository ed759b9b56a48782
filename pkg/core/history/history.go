// Package history remembers the caption documents written by the CLI.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	defaultHistoryFile = "history.json"
	// MaxEntries bounds the stored history; the oldest entries drop off first.
	MaxEntries = 200
)

// Entry describes one written document.
type Entry struct {
	ID         string        `json:"id"`
	Source     string        `json:"source"` // local path or "opensubtitles:<file id>"
	Language   string        `json:"language,omitempty"`
	Filename   string        `json:"filename"`
	OutputPath string        `json:"outputPath"`
	Offset     time.Duration `json:"offset"`
	Cues       int           `json:"cues"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// Store is a JSON-file backed list of entries, newest first.
type Store struct {
	entries  []Entry
	lock     sync.RWMutex
	filePath string
	logger   *log.Logger
}

// NewStore creates a Store persisting to history.json inside configDir,
// loading any existing history.
func NewStore(configDir string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New()
		logger.SetFormatter(&log.TextFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(log.InfoLevel)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}

	s := &Store{
		entries:  []Entry{},
		filePath: filepath.Join(configDir, defaultHistoryFile),
		logger:   logger,
	}
	if err := s.Load(); err != nil {
		s.logger.Warnf("Failed to load history from %s: %v. Starting with empty history.", s.filePath, err)
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.filePath
}

// Load replaces the in-memory entries with the backing file's content. A
// missing or empty file yields an empty history.
func (s *Store) Load() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.entries = []Entry{}
			return nil
		}
		return fmt.Errorf("failed to read history file %s: %w", s.filePath, err)
	}
	if len(data) == 0 {
		s.entries = []Entry{}
		return nil
	}

	var loaded []Entry
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to unmarshal history from %s: %w", s.filePath, err)
	}
	s.entries = loaded
	s.logger.Debugf("History loaded from %s (%d items)", s.filePath, len(s.entries))
	return nil
}

// save writes the entries to disk. Callers hold at least a read lock.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write history file %s: %w", s.filePath, err)
	}
	return nil
}

// Add prepends e, filling in its ID and CreatedAt when unset, and saves.
func (s *Store) Add(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.entries = append([]Entry{e}, s.entries...)
	if len(s.entries) > MaxEntries {
		s.entries = s.entries[:MaxEntries]
	}
	s.logger.WithFields(log.Fields{"filename": e.Filename, "source": e.Source}).Debug("Added history entry")
	return e, s.save()
}

// List returns a copy of the entries, newest first.
func (s *Store) List() []Entry {
	s.lock.RLock()
	defer s.lock.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Remove deletes the entry whose ID is id, or the single entry whose ID
// starts with it, and saves. The removed entry is returned.
func (s *Store) Remove(id string) (Entry, error) {
	if id == "" {
		return Entry{}, fmt.Errorf("empty history id")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	match := s.indexOf(id)
	switch match {
	case -1:
		return Entry{}, fmt.Errorf("no history entry with id %q", id)
	case -2:
		return Entry{}, fmt.Errorf("history id %q matches several entries", id)
	}

	removed := s.entries[match]
	s.entries = append(s.entries[:match], s.entries[match+1:]...)
	return removed, s.save()
}

// indexOf finds id exactly, then as a unique prefix. It returns -1 when
// nothing matches and -2 when the prefix is ambiguous.
func (s *Store) indexOf(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	match := -1
	for i, e := range s.entries {
		if strings.HasPrefix(e.ID, id) {
			if match >= 0 {
				return -2
			}
			match = i
		}
	}
	return match
}

// Clear removes all entries and saves.
func (s *Store) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.entries) == 0 {
		return nil
	}
	s.entries = []Entry{}
	s.logger.Info("Cleared history.")
	return s.save()
}
