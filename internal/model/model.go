package model

import "time"

// Incident is the normalized record for a detected status event,
// regardless of whether it arrived via the feed poller or the webhook.
type Incident struct {
	ID       string            `json:"id"`      // stable identity for de-dup (guid/link/incident id)
	Source   string            `json:"source"`  // feed name or "webhook"
	Product  string            `json:"product"` // detected product, or the fallback
	Title    string            `json:"event"`
	Status   string            `json:"status"`
	URL      string            `json:"url,omitempty"`
	Detected time.Time         `json:"timestamp"` // published time of the entry (UTC)
	Labels   map[string]string `json:"labels,omitempty"`
}

// Key returns the de-dup key for the incident.
func (i Incident) Key() string {
	return i.Source + "::" + i.ID
}
