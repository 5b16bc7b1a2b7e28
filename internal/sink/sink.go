package sink

import (
	"context"

	"statuspage-monitor/internal/model"
)

// Sink is the minimal interface all sinks must implement.
type Sink interface {
	Name() string
	Push(ctx context.Context, incidents []model.Incident) error
}
