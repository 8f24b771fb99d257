package filter

import (
	"fmt"
	"sync/atomic"

	"lglsync/src/internal/config"
	"lglsync/src/internal/core"

	"github.com/lixenwraith/log"
)

// Chain runs tail entries through an ordered set of filters. An entry
// is broadcast only when every filter passes it.
type Chain struct {
	filters []*Filter
	logger  *log.Logger

	// Statistics
	totalProcessed atomic.Uint64
	totalPassed    atomic.Uint64
	totalDropped   atomic.Uint64
}

// NewChain compiles one filter per configuration, in order.
func NewChain(configs []config.FilterConfig, logger *log.Logger) (*Chain, error) {
	chain := &Chain{
		filters: make([]*Filter, 0, len(configs)),
		logger:  logger,
	}

	for i, cfg := range configs {
		f, err := New(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("filter[%d]: %w", i, err)
		}
		chain.filters = append(chain.filters, f)
	}

	logger.Info("msg", "Filter chain created",
		"component", "filter_chain",
		"filter_count", len(configs))
	return chain, nil
}

// Apply reports whether an entry survives every filter. An empty chain
// passes everything.
func (c *Chain) Apply(entry core.LogEntry) bool {
	c.totalProcessed.Add(1)

	for i, f := range c.filters {
		if !f.Apply(entry) {
			c.totalDropped.Add(1)
			c.logger.Debug("msg", "Tail entry dropped by filter",
				"component", "filter_chain",
				"filter_index", i,
				"level", entry.Level)
			return false
		}
	}

	c.totalPassed.Add(1)
	return true
}

// GetStats returns aggregated chain statistics.
func (c *Chain) GetStats() map[string]any {
	filterStats := make([]map[string]any, len(c.filters))
	for i, f := range c.filters {
		filterStats[i] = f.GetStats()
	}

	return map[string]any{
		"filter_count":    len(c.filters),
		"total_processed": c.totalProcessed.Load(),
		"total_passed":    c.totalPassed.Load(),
		"total_dropped":   c.totalDropped.Load(),
		"filters":         filterStats,
	}
}
