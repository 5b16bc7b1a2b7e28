package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statuspage-monitor/internal/metrics"
	"statuspage-monitor/internal/model"
	"statuspage-monitor/internal/sink"
	"statuspage-monitor/internal/store"
)

func testIncident(id string) model.Incident {
	return model.Incident{
		ID:       id,
		Source:   "openai",
		Product:  "Assistants API",
		Title:    "Elevated error rates on Assistants API",
		Status:   "Investigating",
		Detected: time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC),
	}
}

func readLog(t *testing.T, path string) []model.Incident {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []model.Incident
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestPipelineLogsOnce(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "incident_log.json")
	seen, err := store.LoadSeen(filepath.Join(dir, "seen.json"), 100)
	require.NoError(t, err)

	p := &pipeline{
		dedup:   store.NewDedup(100, time.Hour),
		seen:    seen,
		sinks:   []sink.Sink{sink.NewJSONFile(logPath)},
		metrics: metrics.New(":0"),
	}

	n, err := p.process(context.Background(), []model.Incident{testIncident("e1")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// identical entry processed twice: no second record
	n, err = p.process(context.Background(), []model.Incident{testIncident("e1")})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Len(t, readLog(t, logPath), 1)
}

func TestPipelineDedupSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "incident_log.json")
	seenPath := filepath.Join(dir, "seen.json")

	seen, err := store.LoadSeen(seenPath, 100)
	require.NoError(t, err)
	p := &pipeline{
		dedup:   store.NewDedup(100, time.Hour),
		seen:    seen,
		sinks:   []sink.Sink{sink.NewJSONFile(logPath)},
		metrics: metrics.New(":0"),
	}
	_, err = p.process(context.Background(), []model.Incident{testIncident("e1")})
	require.NoError(t, err)

	// fresh dedup cache and re-loaded seen registry, as after a restart
	seen2, err := store.LoadSeen(seenPath, 100)
	require.NoError(t, err)
	p2 := &pipeline{
		dedup:   store.NewDedup(100, time.Hour),
		seen:    seen2,
		sinks:   []sink.Sink{sink.NewJSONFile(logPath)},
		metrics: metrics.New(":0"),
	}
	n, err := p2.process(context.Background(), []model.Incident{testIncident("e1")})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, readLog(t, logPath), 1)
}

func TestPipelineSinkErrorLeavesBatchUnseen(t *testing.T) {
	dir := t.TempDir()
	seen, err := store.LoadSeen(filepath.Join(dir, "seen.json"), 100)
	require.NoError(t, err)

	p := &pipeline{
		dedup:   store.NewDedup(100, time.Hour),
		seen:    seen,
		sinks:   []sink.Sink{failingSink{name: "failing"}},
		metrics: metrics.New(":0"),
	}
	_, err = p.process(context.Background(), []model.Incident{testIncident("e1")})
	require.Error(t, err)

	// next cycle retries the same entry against a working sink
	logPath := filepath.Join(dir, "incident_log.json")
	p.sinks = []sink.Sink{sink.NewJSONFile(logPath)}
	n, err := p.process(context.Background(), []model.Incident{testIncident("e1")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPipelineConcurrentDeliveriesLogOnce(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "incident_log.json")
	seen, err := store.LoadSeen(filepath.Join(dir, "seen.json"), 100)
	require.NoError(t, err)

	// A slow sink widens the window between the seen check and the
	// mark, where simultaneous webhook deliveries used to slip through.
	p := &pipeline{
		dedup:   store.NewDedup(100, time.Hour),
		seen:    seen,
		sinks:   []sink.Sink{slowSink{inner: sink.NewJSONFile(logPath), delay: 100 * time.Millisecond}},
		metrics: metrics.New(":0"),
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.process(context.Background(), []model.Incident{testIncident("e1")})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, readLog(t, logPath), 1)
}

func TestPipelineReportsEverySinkError(t *testing.T) {
	dir := t.TempDir()
	seen, err := store.LoadSeen(filepath.Join(dir, "seen.json"), 100)
	require.NoError(t, err)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	p := &pipeline{
		dedup:   store.NewDedup(100, time.Hour),
		seen:    seen,
		sinks:   []sink.Sink{failingSink{name: "first"}, failingSink{name: "second"}},
		metrics: metrics.New(":0"),
	}
	_, err = p.process(context.Background(), []model.Incident{testIncident("e1")})
	require.Error(t, err)

	// both failures are logged, not just the one that is returned
	assert.Contains(t, buf.String(), "push -> first")
	assert.Contains(t, buf.String(), "push -> second")
}

type failingSink struct {
	name string
}

func (f failingSink) Name() string { return f.name }
func (failingSink) Push(context.Context, []model.Incident) error {
	return assert.AnError
}

type slowSink struct {
	inner sink.Sink
	delay time.Duration
}

func (s slowSink) Name() string { return s.inner.Name() }
func (s slowSink) Push(ctx context.Context, incidents []model.Incident) error {
	time.Sleep(s.delay)
	return s.inner.Push(ctx, incidents)
}
