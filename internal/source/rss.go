package source

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"statuspage-monitor/internal/config"
	"statuspage-monitor/internal/detect"
	"statuspage-monitor/internal/model"
	"statuspage-monitor/internal/store"
	"statuspage-monitor/internal/util"
)

type rssSource struct {
	cfg          config.FeedConfig
	det          *detect.Detector
	logUnmatched bool
	client       *http.Client
	parser       *gofeed.Parser

	pending string // cursor for the last fetched batch, saved on Commit
}

func NewRSS(cfg config.FeedConfig, det *detect.Detector, logUnmatched bool) *rssSource {
	to := cfg.HTTP.Timeout
	if to == 0 {
		to = 15 * time.Second
	}
	return &rssSource{
		cfg:          cfg,
		det:          det,
		logUnmatched: logUnmatched,
		client:       util.NewHTTPClient(to),
		parser:       gofeed.NewParser(),
	}
}

func (s *rssSource) Name() string { return s.cfg.Name }

// Fetch downloads and parses the history feed, returning the entries
// newer than the persisted cursor that name a known product.
func (s *rssSource) Fetch(ctx context.Context) ([]model.Incident, error) {
	var body []byte
	err := util.Retry(ctx, s.cfg.MaxRetries, s.cfg.Backoff, s.cfg.MaxBackoff, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
		if err != nil {
			return err
		}
		if ua := s.cfg.HTTP.UserAgent; ua != "" {
			req.Header.Set("User-Agent", ua)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("%s: http %d: %s", s.cfg.Name, resp.StatusCode, strings.TrimSpace(string(b)))
		}
		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}

	feed, err := s.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("%s: parse feed: %w", s.cfg.Name, err)
	}

	var cursor time.Time
	haveState := false
	if s.cfg.StatePath != "" {
		if st, err := store.LoadFeedState(s.cfg.StatePath); err == nil && st.LastPublished != "" {
			if t, err := time.Parse(time.RFC3339, st.LastPublished); err == nil {
				cursor = t
				haveState = true
			}
		}
	}

	now := time.Now().UTC()
	latest := cursor
	var out []model.Incident
	for _, item := range feed.Items {
		ts := entryTime(item, now)
		if ts.After(latest) {
			latest = ts
		}
		if haveState && !ts.After(cursor) {
			continue
		}

		id := entryID(item)
		if id == "" {
			// nothing to key on; a record could never be de-duped
			continue
		}
		text := item.Title + " " + item.Description
		product, matched := s.det.Detect(text)
		if !matched && !s.logUnmatched {
			continue
		}

		out = append(out, model.Incident{
			ID:       id,
			Source:   s.cfg.Name,
			Product:  product,
			Title:    strings.TrimSpace(item.Title),
			Status:   strings.TrimSpace(item.Description),
			URL:      item.Link,
			Detected: ts,
			Labels: map[string]string{
				"feed":     s.cfg.Name,
				"severity": detect.Severity(text),
			},
		})
	}

	s.pending = ""
	if latest.After(cursor) {
		s.pending = latest.Format(time.RFC3339)
	}

	// First sight of the feed with skip_initial: prime the cursor and
	// report nothing, so the backlog is not logged.
	if s.cfg.SkipInitial && !haveState {
		if err := s.Commit(); err != nil {
			log.Printf("%s: prime cursor: %v", s.cfg.Name, err)
		}
		log.Printf("%s: initialized, waiting for future updates", s.cfg.Name)
		return nil, nil
	}

	return out, nil
}

// Commit persists the cursor for the last fetched batch. The caller
// invokes it once the batch reached every sink, so a failed push
// leaves the window open for the next cycle.
func (s *rssSource) Commit() error {
	if s.cfg.StatePath == "" || s.pending == "" {
		return nil
	}
	return store.SaveFeedState(s.cfg.StatePath, store.FeedState{LastPublished: s.pending})
}

func entryID(item *gofeed.Item) string {
	if s := strings.TrimSpace(item.GUID); s != "" {
		return s
	}
	if s := strings.TrimSpace(item.Link); s != "" {
		return s
	}
	if item.Title == "" && item.Published == "" {
		return ""
	}
	sum := sha1.Sum([]byte(item.Title + "|" + item.Published))
	return hex.EncodeToString(sum[:])
}

func entryTime(item *gofeed.Item, fallback time.Time) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if s := strings.TrimSpace(item.Published); s != "" {
		if t, err := dateparse.ParseAny(s); err == nil {
			return t.UTC()
		}
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	if s := strings.TrimSpace(item.Updated); s != "" {
		if t, err := dateparse.ParseAny(s); err == nil {
			return t.UTC()
		}
	}
	return fallback
}
