package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"statuspage-monitor/internal/util"
)

// Seen is the durable registry of logged incident keys. The log file
// is a permanent history, so "at most one record per entry" must hold
// across restarts; the in-memory Dedup alone cannot guarantee that.
type Seen struct {
	mu   sync.Mutex
	path string
	cap  int
	ids  []string // insertion order, oldest first
	set  map[string]struct{}
}

type seenFile struct {
	Seen []string `json:"seen"`
}

// LoadSeen reads the registry from path. A missing file starts empty;
// a corrupt file is an error so history is never silently forgotten.
func LoadSeen(path string, maxIDs int) (*Seen, error) {
	if maxIDs <= 0 {
		maxIDs = 50000
	}
	s := &Seen{path: path, cap: maxIDs, set: make(map[string]struct{})}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read seen state: %w", err)
	}
	var f seenFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse seen state %s: %w", path, err)
	}
	for _, id := range f.Seen {
		if _, ok := s.set[id]; ok {
			continue
		}
		s.ids = append(s.ids, id)
		s.set[id] = struct{}{}
	}
	return s, nil
}

func (s *Seen) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[key]
	return ok
}

// Add records keys and persists the registry. Oldest keys are trimmed
// beyond the cap.
func (s *Seen) Add(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, k := range keys {
		if _, ok := s.set[k]; ok {
			continue
		}
		s.ids = append(s.ids, k)
		s.set[k] = struct{}{}
		changed = true
	}
	for len(s.ids) > s.cap {
		old := s.ids[0]
		s.ids = s.ids[1:]
		delete(s.set, old)
		changed = true
	}
	if !changed {
		return nil
	}
	b, err := json.MarshalIndent(seenFile{Seen: s.ids}, "", " ")
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(s.path, b)
}

func (s *Seen) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
