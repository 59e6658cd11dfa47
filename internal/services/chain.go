package services

import (
	"context"
	"log"
	"sync"
)

// BackendChain holds the ranked synthesis backends and caches their probe
// results for the life of the process. Probes are cheap (version checks and
// health endpoints) but there is no point repeating them per job.
type BackendChain struct {
	backends []SpeechBackend
	once     []sync.Once
	probeErr []error
}

// BackendStatus reports one backend's probe outcome.
type BackendStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

func NewBackendChain(backends ...SpeechBackend) *BackendChain {
	return &BackendChain{
		backends: backends,
		once:     make([]sync.Once, len(backends)),
		probeErr: make([]error, len(backends)),
	}
}

func (c *BackendChain) probe(ctx context.Context, i int) error {
	c.once[i].Do(func() {
		b := c.backends[i]
		if err := b.Probe(ctx); err != nil {
			c.probeErr[i] = err
			log.Printf("[Chain] %s unavailable: %v", b.Name(), err)
			return
		}
		log.Printf("[Chain] %s available", b.Name())
	})
	return c.probeErr[i]
}

// Available returns the healthy backends in priority order, probing each on
// first use.
func (c *BackendChain) Available(ctx context.Context) []SpeechBackend {
	var out []SpeechBackend
	for i, b := range c.backends {
		if c.probe(ctx, i) == nil {
			out = append(out, b)
		}
	}
	return out
}

// Report returns the probe outcome for every backend in chain order.
func (c *BackendChain) Report(ctx context.Context) []BackendStatus {
	out := make([]BackendStatus, 0, len(c.backends))
	for i, b := range c.backends {
		st := BackendStatus{Name: b.Name()}
		if err := c.probe(ctx, i); err != nil {
			st.Detail = err.Error()
		} else {
			st.Available = true
		}
		out = append(out, st)
	}
	return out
}
