package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"statuspage-monitor/internal/config"
	"statuspage-monitor/internal/detect"
	"statuspage-monitor/internal/metrics"
	"statuspage-monitor/internal/model"
	"statuspage-monitor/internal/sink"
	"statuspage-monitor/internal/source"
	"statuspage-monitor/internal/store"
	"statuspage-monitor/internal/webhook"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

// pipeline is the shared path for both the poller and the webhook:
// filter already-logged incidents, fan out to sinks, then mark seen.
type pipeline struct {
	mu      sync.Mutex
	dedup   *store.Dedup
	seen    *store.Seen
	sinks   []sink.Sink
	metrics *metrics.Metrics
}

func (p *pipeline) process(ctx context.Context, incidents []model.Incident) (int, error) {
	// The poller and webhook share this path. Runs must not interleave:
	// two deliveries of the same incident would both pass the filter
	// before either one is marked seen.
	p.mu.Lock()
	defer p.mu.Unlock()

	fresh := make([]model.Incident, 0, len(incidents))
	for _, in := range incidents {
		key := in.Key()
		if p.seen.Contains(key) || p.dedup.Seen(key) {
			continue
		}
		fresh = append(fresh, in)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(p.sinks))
	for _, sk := range p.sinks {
		sk := sk
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sk.Push(ctx, fresh); err != nil {
				p.metrics.IncSinkError(sk.Name())
				errCh <- fmt.Errorf("push -> %s: %w", sk.Name(), err)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var firstErr error
	for err := range errCh {
		log.Printf("%v", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		// Nothing gets marked seen; the whole batch is retried next cycle.
		return 0, firstErr
	}

	keys := make([]string, 0, len(fresh))
	for _, in := range fresh {
		p.dedup.Mark(in.Key())
		keys = append(keys, in.Key())
		p.metrics.IncIncidents(in.Source, in.Product, 1)
	}
	if err := p.seen.Add(keys...); err != nil {
		log.Printf("persist seen state: %v", err)
	}
	return len(fresh), nil
}

func main() {
	var (
		cfgPath  = flag.String("config", "config.yml", "path to YAML config")
		interval = flag.Duration("interval", 30*time.Second, "poll interval")
		once     = flag.Bool("once", false, "run a single cycle then exit")
		verbose  = flag.Bool("verbose", true, "enable verbose logging")
	)
	flag.Parse()

	log.Printf("statuspage-monitor %s starting...", Version)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	det := detect.New(cfg.Detect)

	// Build sinks
	sinks := []sink.Sink{sink.NewJSONFile(cfg.Log.Path)}
	if cfg.Log.Console {
		sinks = append(sinks, sink.NewConsole())
	}
	if strings.TrimSpace(cfg.Loki.URL) != "" {
		sinks = append(sinks, sink.NewLoki(cfg.Loki))
	}
	log.Printf("incident log: %s (%d sink(s))", cfg.Log.Path, len(sinks))

	// Dedup: in-memory LRU plus the durable seen registry
	dedup := store.NewDedup(cfg.Dedup.MaxKeys, cfg.Dedup.TTL)
	seen, err := store.LoadSeen(cfg.Dedup.StatePath, cfg.Dedup.MaxSeen)
	if err != nil {
		log.Fatalf("load seen state: %v", err)
	}
	log.Printf("seen registry: %s (%d key(s))", cfg.Dedup.StatePath, seen.Len())

	// Build sources
	srcs := make([]source.Source, 0, len(cfg.Feeds))
	for _, fc := range cfg.Feeds {
		s := source.NewFromConfig(fc, det, cfg.Detect.LogUnmatched)
		srcs = append(srcs, s)
		log.Printf("configured feed: %s (%s)", s.Name(), fc.URL)
	}

	m := metrics.New(cfg.Metrics.Listen)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pipe := &pipeline{dedup: dedup, seen: seen, sinks: sinks, metrics: m}

	if cfg.Metrics.Enable {
		go func() {
			log.Printf("serving /metrics on %s", cfg.Metrics.Listen)
			if err := m.Serve(); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
	}

	var wh *webhook.Server
	if cfg.Webhook.Enable {
		wh = webhook.New(cfg.Webhook, det, func(ctx context.Context, in model.Incident) (bool, error) {
			n, err := pipe.process(ctx, []model.Incident{in})
			return n > 0, err
		})
		go func() {
			log.Printf("webhook listener on %s%s", cfg.Webhook.Listen, cfg.Webhook.Path)
			if err := wh.Serve(); err != nil {
				log.Printf("webhook server: %v", err)
			}
		}()
	}

	runOnce := func() {
		start := time.Now()
		total := 0
		hadErr := false

		for _, src := range srcs {
			evs, err := src.Fetch(ctx)
			if err != nil {
				log.Printf("fetch %s: %v", src.Name(), err)
				m.IncFetchError(src.Name())
				hadErr = true
				continue
			}
			if *verbose {
				log.Printf("%s: %d new entr(ies)", src.Name(), len(evs))
			}

			n, err := pipe.process(ctx, evs)
			if err != nil {
				log.Printf("%s: %v", src.Name(), err)
				hadErr = true
				continue
			}
			if err := src.Commit(); err != nil {
				log.Printf("%s: save cursor: %v", src.Name(), err)
			}
			total += n
			if n > 0 {
				log.Printf("%s: logged %d incident(s)", src.Name(), n)
			}
		}

		m.ObserveCycle(time.Since(start))
		if !hadErr {
			m.SetLastSuccess(time.Now())
		}
		if *verbose {
			log.Printf("cycle finished in %s, incidents=%d", time.Since(start).Truncate(time.Millisecond), total)
		}
	}

	if len(srcs) > 0 {
		log.Printf("monitoring %d feed(s), interval=%s", len(srcs), interval.String())
		runOnce()
		if *once {
			shutdown(m, wh, cfg)
			return
		}
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-ctx.Done():
				log.Printf("stopping: %v", ctx.Err())
				break loop
			case <-ticker.C:
				runOnce()
			}
		}
	} else {
		// webhook-only mode
		<-ctx.Done()
		log.Printf("stopping: %v", ctx.Err())
	}

	shutdown(m, wh, cfg)
}

func shutdown(m *metrics.Metrics, wh *webhook.Server, cfg *config.Config) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if cfg.Metrics.Enable {
		_ = m.Shutdown(shutdownCtx)
	}
	if wh != nil {
		_ = wh.Shutdown(shutdownCtx)
	}
}
