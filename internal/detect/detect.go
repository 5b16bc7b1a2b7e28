package detect

import (
	"strings"

	"statuspage-monitor/internal/config"
)

// Built-in product table, used when the config lists none.
var defaultProducts = []config.ProductRule{
	{Name: "Chat Completions API", Keywords: []string{"chat completions", "gpt-4", "gpt-4o", "gpt-3.5", "chatgpt"}},
	{Name: "Responses API", Keywords: []string{"responses api", "response endpoint"}},
	{Name: "Assistants API", Keywords: []string{"assistants api", "assistant"}},
	{Name: "Batch API", Keywords: []string{"batch api", "batch job"}},
	{Name: "Realtime API", Keywords: []string{"realtime api", "realtime"}},
	{Name: "Embeddings API", Keywords: []string{"embedding", "embeddings"}},
	{Name: "Moderation API", Keywords: []string{"moderation", "moderate"}},
	{Name: "Vector Stores API", Keywords: []string{"vector store", "vector database"}},
	{Name: "Fine-tuning API", Keywords: []string{"fine-tune", "fine tuning", "fine-tuning"}},
	{Name: "Image Generation API", Keywords: []string{"image generation", "dall-e"}},
}

const defaultFallback = "OpenAI Platform / Multiple Services"

type rule struct {
	name  string
	words []string
}

// Detector scores entry text against a keyword table to guess which
// product an incident affects. Rules are normalized once at startup.
type Detector struct {
	rules    []rule
	fallback string
}

func New(cfg config.DetectConfig) *Detector {
	products := cfg.Products
	if len(products) == 0 {
		products = defaultProducts
	}
	fallback := strings.TrimSpace(cfg.Fallback)
	if fallback == "" {
		fallback = defaultFallback
	}
	d := &Detector{fallback: fallback}
	for _, p := range products {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		words := make([]string, 0, len(p.Keywords))
		for _, w := range p.Keywords {
			if s := strings.ToLower(strings.TrimSpace(w)); s != "" {
				words = append(words, s)
			}
		}
		if len(words) == 0 {
			continue
		}
		d.rules = append(d.rules, rule{name: p.Name, words: words})
	}
	return d
}

func (d *Detector) Fallback() string { return d.fallback }

// Detect returns the product whose keywords score highest against the
// text (case-insensitive substring hits, ties broken by rule order).
// When no keyword matches it returns the fallback product and false.
func (d *Detector) Detect(text string) (string, bool) {
	lc := strings.ToLower(text)
	best := d.fallback
	bestScore := 0
	for _, r := range d.rules {
		score := 0
		for _, w := range r.words {
			if strings.Contains(lc, w) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = r.name
		}
	}
	return best, bestScore > 0
}

// Severity classifies status text into a coarse bucket for labeling.
func Severity(text string) string {
	lc := strings.ToLower(text)
	switch {
	case strings.Contains(lc, "resolved") || strings.Contains(lc, "completed"):
		return "resolved"
	case strings.Contains(lc, "critical") || strings.Contains(lc, "major outage"):
		return "critical"
	case strings.Contains(lc, "major"):
		return "major"
	case strings.Contains(lc, "partial") || strings.Contains(lc, "degraded") ||
		strings.Contains(lc, "elevated") || strings.Contains(lc, "minor"):
		return "minor"
	default:
		return "unknown"
	}
}
