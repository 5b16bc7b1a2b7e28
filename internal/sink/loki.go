package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"statuspage-monitor/internal/config"
	"statuspage-monitor/internal/model"
	"statuspage-monitor/internal/util"
)

type lokiSink struct {
	cfg    config.LokiConfig
	client *http.Client
}

func NewLoki(cfg config.LokiConfig) Sink {
	to := cfg.Timeout
	if to == 0 {
		to = 10 * time.Second
	}
	return &lokiSink{cfg: cfg, client: util.NewHTTPClient(to)}
}

func (l *lokiSink) Name() string { return "loki" }

func (l *lokiSink) Push(ctx context.Context, incidents []model.Incident) error {
	if len(incidents) == 0 {
		return nil
	}

	type stream struct {
		Stream map[string]string `json:"stream"`
		Values [][2]string       `json:"values"`
	}
	payload := struct {
		Streams []stream `json:"streams"`
	}{}
	for _, in := range incidents {
		line, _ := json.Marshal(map[string]any{
			"id":        in.ID,
			"event":     in.Title,
			"status":    in.Status,
			"url":       in.URL,
			"timestamp": in.Detected.Format(time.RFC3339),
		})
		lbls := map[string]string{
			"job":     l.cfg.Job,
			"source":  in.Source,
			"product": in.Product,
		}
		for k, v := range in.Labels {
			lbls[k] = v
		}

		// Loki expects ns timestamp as a decimal string
		payload.Streams = append(payload.Streams, stream{
			Stream: lbls,
			Values: [][2]string{
				{fmt.Sprintf("%d", in.Detected.UnixNano()), string(line)},
			},
		})
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.URL+"/loki/api/v1/push", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if l.cfg.TenantID != "" {
		req.Header.Set("X-Scope-OrgID", l.cfg.TenantID)
	}
	if ua := l.cfg.UserAgent; ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("loki push failed http %d", resp.StatusCode)
	}
	return nil
}
