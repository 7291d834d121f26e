package node

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/caio/go-tdigest"
	"go.uber.org/atomic"

	"github.com/pg-sharding/ringkv/pkg/protocol"
)

var DefaultQuantiles = []float64{0.5, 0.99}

// Statistics keeps request latency digests in milliseconds per client verb.
type Statistics struct {
	mu      sync.Mutex
	latency map[protocol.Verb]*tdigest.TDigest

	ActiveConnections *atomic.Int64
	TotalConnections  *atomic.Int64
}

func NewStatistics() *Statistics {
	return &Statistics{
		latency:           map[protocol.Verb]*tdigest.TDigest{},
		ActiveConnections: atomic.NewInt64(0),
		TotalConnections:  atomic.NewInt64(0),
	}
}

func (s *Statistics) ConnOpened() {
	s.ActiveConnections.Inc()
	s.TotalConnections.Inc()
}

func (s *Statistics) ConnClosed() {
	s.ActiveConnections.Dec()
}

// Record adds the time elapsed since start to the digest of verb.
func (s *Statistics) Record(verb protocol.Verb, start time.Time) {
	ms := float64(time.Since(start).Microseconds()) / 1000

	s.mu.Lock()
	defer s.mu.Unlock()

	td, ok := s.latency[verb]
	if !ok {
		var err error
		if td, err = tdigest.New(); err != nil {
			return
		}
		s.latency[verb] = td
	}
	_ = td.Add(ms)
}

func (s *Statistics) Count(verb protocol.Verb) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if td, ok := s.latency[verb]; ok {
		return td.Count()
	}
	return 0
}

func (s *Statistics) Quantile(verb protocol.Verb, q float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if td, ok := s.latency[verb]; ok {
		return td.Quantile(q)
	}
	return 0
}

// Summary renders the single line answered to the stats control verb.
func (s *Statistics) Summary() string {
	parts := []string{
		fmt.Sprintf("connections_active=%d", s.ActiveConnections.Load()),
		fmt.Sprintf("connections_total=%d", s.TotalConnections.Load()),
	}
	for _, verb := range []protocol.Verb{protocol.VerbGet, protocol.VerbPut} {
		parts = append(parts, fmt.Sprintf("%s_count=%d", verb, s.Count(verb)))
		for _, q := range DefaultQuantiles {
			parts = append(parts, fmt.Sprintf("%s_p%g=%.3fms", verb, q*100, s.Quantile(verb, q)))
		}
	}
	return strings.Join(parts, " ")
}
