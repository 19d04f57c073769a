package extractor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultProbeTTL = 5 * time.Minute

// CachedProbe keeps the last successful probe for ttl so status requests do
// not spawn a subprocess each time.
type CachedProbe struct {
	ext    Extractor
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Info
}

func NewCachedProbe(ext Extractor, logger *slog.Logger) *CachedProbe {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CachedProbe{ext: ext, ttl: defaultProbeTTL, logger: logger}
}

// Get returns the cached info while fresh, otherwise probes again.
func (p *CachedProbe) Get(ctx context.Context) (*Info, error) {
	p.mu.RLock()
	if p.cached != nil && time.Since(p.cached.ProbedAt) < p.ttl {
		info := p.cached
		p.mu.RUnlock()
		return info, nil
	}
	p.mu.RUnlock()

	return p.Refresh(ctx)
}

// Peek returns the cached info without probing. It may be nil.
func (p *CachedProbe) Peek() *Info {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cached
}

// Refresh probes now. On failure a stale result is returned when one exists.
func (p *CachedProbe) Refresh(ctx context.Context) (*Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, err := p.ext.Probe(ctx)
	if err != nil {
		p.logger.Warn("extractor probe failed", "error", err)
		if p.cached != nil {
			return p.cached, nil
		}
		return nil, err
	}
	p.cached = info
	return info, nil
}

func (p *CachedProbe) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}
