package source

import (
	"context"

	"statuspage-monitor/internal/config"
	"statuspage-monitor/internal/detect"
	"statuspage-monitor/internal/model"
)

type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Incident, error)
	// Commit persists the source's sync cursor after a successful push.
	Commit() error
}

func NewFromConfig(c config.FeedConfig, det *detect.Detector, logUnmatched bool) Source {
	return NewRSS(c, det, logUnmatched)
}
