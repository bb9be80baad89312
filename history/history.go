// Package history keeps the most recent transcriptions, newest first.
package history

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"whisgo/log"
	"whisgo/store"
)

// MaxEntries bounds the persisted list.
const MaxEntries = 20

type Transcription struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// Time parses Timestamp, returning the zero time when it is malformed.
func (t Transcription) Time() time.Time {
	ts, err := time.Parse(time.RFC3339Nano, t.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// Store is the in-memory list mirrored to a KV. Persistence failures are
// logged and never surface to callers.
type Store struct {
	kv  store.KV
	now func() time.Time

	mu      sync.Mutex
	entries []Transcription
	lastID  int64
}

func New(kv store.KV) *Store {
	s := &Store{kv: kv, now: time.Now}
	s.Load()
	return s
}

// Load replaces the in-memory list with the persisted one. A malformed
// value leaves the list empty.
func (s *Store) Load() {
	entries, err := store.LoadJSON(s.kv, store.KeyHistory, []Transcription{}, nil)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			log.Warnf("history: %v", err)
		} else {
			log.Errorf("history load: %v", err)
		}
		entries = []Transcription{}
	}
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	for _, e := range entries {
		s.lastID = max(s.lastID, e.ID)
	}
}

// Add prepends a new entry for text and persists the list.
func (s *Store) Add(text string) Transcription {
	now := s.now().UTC()
	s.mu.Lock()
	id := now.UnixMilli()
	// two adds in the same millisecond still get distinct ids
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	t := Transcription{
		ID:        id,
		Text:      text,
		Timestamp: now.Format("2006-01-02T15:04:05.000Z07:00"),
	}
	entries := make([]Transcription, 0, min(len(s.entries)+1, MaxEntries))
	entries = append(entries, t)
	entries = append(entries, s.entries...)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	s.entries = entries
	snapshot := append([]Transcription(nil), entries...)
	s.mu.Unlock()

	s.save(snapshot)
	return t
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = []Transcription{}
	s.mu.Unlock()
	s.save([]Transcription{})
}

// Entries returns a copy of the list, newest first.
func (s *Store) Entries() []Transcription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transcription(nil), s.entries...)
}

func (s *Store) Latest() (Transcription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return Transcription{}, false
	}
	return s.entries[0], true
}

// Get returns the n-th newest entry, 1-based.
func (s *Store) Get(n int) (Transcription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 || n > len(s.entries) {
		return Transcription{}, fmt.Errorf("no history entry %d (have %d)", n, len(s.entries))
	}
	return s.entries[n-1], nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) save(entries []Transcription) {
	if err := store.SaveJSON(s.kv, store.KeyHistory, entries); err != nil {
		log.Errorf("history save: %v", err)
	}
}
