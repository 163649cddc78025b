package circuitbreaker

import "sync"

// Pool manages one CircuitBreaker per source, creating them lazily and
// applying source-specific configuration where present: a handful of
// known-brittle sources get tighter thresholds and longer recovery
// windows than the default.
type Pool struct {
	mu       sync.Mutex
	configs  map[string]Config
	fallback Config
	breakers map[string]*CircuitBreaker
}

// NewPool builds a pool. configs maps sourceID to a specific Config;
// sources absent from the map use fallback.
func NewPool(fallback Config, configs map[string]Config) *Pool {
	return &Pool{
		configs:  configs,
		fallback: fallback,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the CircuitBreaker for sourceID, creating it on first use.
func (p *Pool) Get(sourceID string) *CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cb, ok := p.breakers[sourceID]; ok {
		return cb
	}

	cfg, ok := p.configs[sourceID]
	if !ok {
		cfg = p.fallback
	}
	cfg.Name = sourceID
	cb := New(cfg)
	p.breakers[sourceID] = cb
	return cb
}

// AllStats returns a snapshot of every breaker created so far, keyed by
// source ID, for the end-of-run summary and metrics export.
func (p *Pool) AllStats() map[string]Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]Stats, len(p.breakers))
	for id, cb := range p.breakers {
		out[id] = cb.Stats()
	}
	return out
}
