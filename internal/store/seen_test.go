package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeenMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")

	s, err := LoadSeen(path, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Contains("x"))
}

func TestSeenSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")

	s, err := LoadSeen(path, 100)
	require.NoError(t, err)
	require.NoError(t, s.Add("openai::a", "openai::b"))

	// simulate restart
	s2, err := LoadSeen(path, 100)
	require.NoError(t, err)
	assert.True(t, s2.Contains("openai::a"))
	assert.True(t, s2.Contains("openai::b"))
	assert.False(t, s2.Contains("openai::c"))
}

func TestSeenAddIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")

	s, err := LoadSeen(path, 100)
	require.NoError(t, err)
	require.NoError(t, s.Add("a"))
	require.NoError(t, s.Add("a"))
	assert.Equal(t, 1, s.Len())
}

func TestSeenCapTrimsOldest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")

	s, err := LoadSeen(path, 3)
	require.NoError(t, err)
	require.NoError(t, s.Add("a", "b", "c", "d", "e"))
	assert.Equal(t, 3, s.Len())
	assert.False(t, s.Contains("a"))
	assert.True(t, s.Contains("e"))
}

func TestSeenCorruptFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadSeen(path, 100)
	assert.Error(t, err)
}

func TestFeedStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, SaveFeedState(path, FeedState{LastPublished: "2026-01-02T15:04:05Z"}))
	st, err := LoadFeedState(path)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02T15:04:05Z", st.LastPublished)
}
