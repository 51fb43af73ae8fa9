// Package library stores imported scores on disk. Each score keeps its
// original MusicXML document under an opaque id, with a JSON index file
// carrying the metadata the browser UI lists.
package library

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	gamelog "github.com/staveplay/staveplay/internal/log"
	"github.com/staveplay/staveplay/internal/musicxml"
	"github.com/staveplay/staveplay/internal/score"
)

const indexFile = "index.json"

// Entry is one stored score's metadata.
type Entry struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Composer string    `json:"composer"`
	Filename string    `json:"filename"`
	Measures int       `json:"measures"`
	Tempo    int       `json:"tempo"`
	AddedAt  time.Time `json:"addedAt"`
}

// Store is a directory-backed score library. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	dir    string
	logger *gamelog.Logger
	index  map[string]Entry
}

// Open loads or creates a library at dir.
func Open(dir string, logger *gamelog.Logger) (*Store, error) {
	if logger == nil {
		logger = gamelog.Discard()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("library: create %s: %w", dir, err)
	}
	s := &Store{
		dir:    dir,
		logger: logger,
		index:  make(map[string]Entry),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("library: read index: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("library: parse index: %w", err)
	}
	for _, e := range entries {
		s.index[e.ID] = e
	}
	return nil
}

// writeIndexLocked persists the index atomically via a temp file rename.
func (s *Store) writeIndexLocked() error {
	entries := make([]Entry, 0, len(s.index))
	for _, e := range s.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].AddedAt.Before(entries[j].AddedAt) })
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("library: encode index: %w", err)
	}
	tmp := filepath.Join(s.dir, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("library: write index: %w", err)
	}
	return os.Rename(tmp, filepath.Join(s.dir, indexFile))
}

// Save imports a MusicXML document into the library. The document is
// parsed first so broken files are rejected before anything is written.
func (s *Store) Save(filename string, data []byte) (Entry, error) {
	sc, err := musicxml.Parse(bytes.NewReader(data))
	if err != nil {
		return Entry{}, err
	}
	id := uuid.New().String()
	title := sc.Title
	if title == "" {
		title = strippedName(filename)
	}
	entry := Entry{
		ID:       id,
		Title:    title,
		Composer: sc.Composer,
		Filename: filepath.Base(filename),
		Measures: len(sc.Measures),
		Tempo:    sc.Tempo,
		AddedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.docPath(id), data, 0o644); err != nil {
		return Entry{}, fmt.Errorf("library: store %s: %w", id, err)
	}
	s.index[id] = entry
	if err := s.writeIndexLocked(); err != nil {
		return Entry{}, err
	}
	s.logger.Infof("[LIBRARY] saved %q as %s (%d measures)", entry.Title, id, entry.Measures)
	return entry, nil
}

// List returns entries ordered oldest first.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]Entry, 0, len(s.index))
	for _, e := range s.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].AddedAt.Before(entries[j].AddedAt) })
	return entries
}

// Get looks up a single entry.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.index[id]
	return e, ok
}

// Load parses a stored score.
func (s *Store) Load(id string) (*score.Score, error) {
	s.mu.Lock()
	_, ok := s.index[id]
	path := s.docPath(id)
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("library: no score %s", id)
	}
	return musicxml.ParseFile(path)
}

// Raw returns the stored document bytes.
func (s *Store) Raw(id string) ([]byte, error) {
	s.mu.Lock()
	_, ok := s.index[id]
	path := s.docPath(id)
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("library: no score %s", id)
	}
	return os.ReadFile(path)
}

// Delete removes a score and its index entry.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; !ok {
		return fmt.Errorf("library: no score %s", id)
	}
	if err := os.Remove(s.docPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("library: delete %s: %w", id, err)
	}
	delete(s.index, id)
	return s.writeIndexLocked()
}

func (s *Store) docPath(id string) string {
	return filepath.Join(s.dir, id+".musicxml")
}

func strippedName(filename string) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
