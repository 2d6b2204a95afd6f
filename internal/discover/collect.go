package discover

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"topodisc/internal/graph"
	"topodisc/internal/session"
	"topodisc/pkg/models"
)

// Record is one device's raw neighbor data for a round. Either table may be
// empty when the corresponding protocol query failed or returned nothing.
type Record struct {
	CDP  *session.CDPTable
	LLDP *session.LLDPTable
}

// Collector queries CDP and LLDP neighbor tables on every connected,
// supported, not-yet-visited device in parallel. Each device is marked
// visited exactly once regardless of query outcome, so later rounds never
// re-query it.
type Collector struct {
	graph     *graph.Graph
	providers *providerPool
	opts      *Options
	logger    *zap.Logger
}

// NewCollector builds a collector over the shared provider pool.
func NewCollector(g *graph.Graph, providers *providerPool, opts *Options, logger *zap.Logger) *Collector {
	return &Collector{graph: g, providers: providers, opts: opts, logger: logger}
}

// Collect returns per-device raw neighbor records for this round and the
// number of devices newly marked visited.
func (c *Collector) Collect(ctx context.Context) (map[string]Record, int) {
	var targets []*models.Device
	for _, dev := range c.graph.Devices() {
		if dev.Visited || !dev.Connected || !dev.OS.IsSupported() {
			continue
		}
		dev.Visited = true
		targets = append(targets, dev)
	}
	if len(targets) == 0 {
		return nil, 0
	}

	limit := c.opts.Limit
	if limit <= 0 || limit > len(targets) {
		limit = len(targets)
	}

	var (
		wg      sync.WaitGroup
		sem     = make(chan struct{}, limit)
		mu      sync.Mutex
		records = make(map[string]Record, len(targets))
	)
	for _, dev := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(dev *models.Device) {
			defer wg.Done()
			defer func() { <-sem }()

			rec := c.collectOne(ctx, dev)
			mu.Lock()
			records[dev.Name] = rec
			mu.Unlock()
		}(dev)
	}
	wg.Wait()

	return records, len(targets)
}

// collectOne queries both protocols on one device. A failure in one
// protocol is logged and yields an empty table without affecting the other.
func (c *Collector) collectOne(ctx context.Context, dev *models.Device) Record {
	provider := c.providers.get(dev)
	rec := Record{}

	cdp, err := provider.GetCDPNeighbors(ctx)
	if err != nil {
		c.logger.Error("cdp neighbor query failed",
			zap.String("device", dev.Name), zap.Error(err))
	} else {
		rec.CDP = cdp
	}

	lldp, err := provider.GetLLDPNeighbors(ctx)
	if err != nil {
		c.logger.Error("lldp neighbor query failed",
			zap.String("device", dev.Name), zap.Error(err))
	} else {
		rec.LLDP = lldp
	}
	return rec
}
