package store

import (
	"encoding/json"
	"os"

	"statuspage-monitor/internal/util"
)

// FeedState is the per-feed sync cursor.
type FeedState struct {
	LastPublished string `json:"last_published"` // RFC3339
}

func LoadFeedState(path string) (FeedState, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return FeedState{}, err
	}
	var s FeedState
	return s, json.Unmarshal(b, &s)
}

func SaveFeedState(path string, s FeedState) error {
	b, err := json.MarshalIndent(s, "", " ")
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(path, b)
}
