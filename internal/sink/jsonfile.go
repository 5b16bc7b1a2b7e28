package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"statuspage-monitor/internal/model"
	"statuspage-monitor/internal/util"
)

// jsonFile is the permanent incident log: a pretty-printed JSON array
// of records, rewritten atomically on every append. Records are never
// mutated or removed.
type jsonFile struct {
	path string
	mu   sync.Mutex
}

func NewJSONFile(path string) Sink {
	return &jsonFile{path: path}
}

func (j *jsonFile) Name() string { return "jsonfile" }

func (j *jsonFile) Push(ctx context.Context, incidents []model.Incident) error {
	if len(incidents) == 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	existing, err := j.load()
	if err != nil {
		return err
	}
	existing = append(existing, incidents...)

	b, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(j.path, b)
}

// load reads the current log. A missing file starts a fresh array; a
// corrupt file is an error so the history is never clobbered.
func (j *jsonFile) load() ([]model.Incident, error) {
	b, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read incident log: %w", err)
	}
	if len(b) == 0 {
		return nil, nil
	}
	var out []model.Incident
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("incident log %s is corrupt: %w", j.path, err)
	}
	return out, nil
}
