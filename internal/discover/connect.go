package discover

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"topodisc/internal/graph"
	"topodisc/internal/session"
	"topodisc/pkg/models"
)

// ConnectReport is the operator-facing outcome of one connection round:
// three disjoint device-name sets.
type ConnectReport struct {
	Connected []string
	Failed    []string
	Skipped   []string
}

// ConnectionManager establishes sessions for every eligible device in the
// graph, bounded by a concurrency limit. Failed connection specs are
// destroyed so they are never retried; devices whose OS is unsupported are
// skipped unless a preferred alias is declared for them.
type ConnectionManager struct {
	graph     *graph.Graph
	providers *providerPool
	opts      *Options
	logger    *zap.Logger
	metrics   *Metrics

	// cdpConfigured/lldpConfigured track protocol enablement done by this
	// run so it can be reverted at the end.
	mu             sync.Mutex
	cdpConfigured  map[string]struct{}
	lldpConfigured map[string]struct{}
}

// NewConnectionManager builds a manager over the shared provider pool.
func NewConnectionManager(g *graph.Graph, providers *providerPool, opts *Options, metrics *Metrics, logger *zap.Logger) *ConnectionManager {
	return &ConnectionManager{
		graph:          g,
		providers:      providers,
		opts:           opts,
		logger:         logger,
		metrics:        metrics,
		cdpConfigured:  make(map[string]struct{}),
		lldpConfigured: make(map[string]struct{}),
	}
}

// ConnectAll attempts a session for every device not yet connected. Work
// within the round runs in parallel up to the limit; the call returns once
// every attempt has resolved.
func (m *ConnectionManager) ConnectAll(ctx context.Context) ConnectReport {
	limit := m.opts.Limit
	if limit <= 0 {
		limit = m.graph.Len()
	}
	if limit < 1 {
		limit = 1
	}

	var (
		wg     sync.WaitGroup
		sem    = make(chan struct{}, limit)
		mu     sync.Mutex
		report ConnectReport
	)

	for _, dev := range m.graph.Devices() {
		if dev.Connected {
			continue
		}
		_, hasAlias := m.opts.Alias[dev.Name]
		if !dev.OS.IsSupported() && !hasAlias {
			mu.Lock()
			report.Skipped = append(report.Skipped, dev.Name)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(dev *models.Device) {
			defer wg.Done()
			defer func() { <-sem }()

			m.logger.Info("attempting to connect", zap.String("device", dev.Name))
			ok := m.connectOne(ctx, dev)

			mu.Lock()
			if ok {
				report.Connected = append(report.Connected, dev.Name)
			} else {
				report.Failed = append(report.Failed, dev.Name)
			}
			mu.Unlock()
		}(dev)
	}
	wg.Wait()

	sort.Strings(report.Connected)
	sort.Strings(report.Failed)
	sort.Strings(report.Skipped)
	return report
}

// connectOne tries the device's connection specs in order: the preferred
// alias first when declared, then every remaining spec in declaration
// order, optionally filtered to ssh. A failed spec is destroyed and the
// next candidate tried.
func (m *ConnectionManager) connectOne(ctx context.Context, dev *models.Device) bool {
	provider := m.providers.get(dev)
	opts := session.ConnectOptions{Timeout: m.opts.Timeout, LearnHostname: true}

	tried := make(map[string]struct{})
	if alias, ok := m.opts.Alias[dev.Name]; ok {
		if spec, declared := dev.Connections[alias]; declared {
			// A destroyed alias spec falls through to the remaining specs
			// instead of being re-attempted every round.
			if !spec.Destroyed() {
				tried[alias] = struct{}{}
				if m.attempt(ctx, dev, provider, alias, opts) {
					m.afterConnect(ctx, dev, provider)
					return true
				}
			}
		} else {
			m.logger.Info("device has no connection with preferred alias",
				zap.String("device", dev.Name), zap.String("alias", alias))
		}
	}

	for _, name := range dev.ConnectionNames() {
		if _, done := tried[name]; done {
			continue
		}
		spec := dev.Connections[name]
		if spec.Destroyed() {
			continue
		}
		if m.opts.SSHOnly && spec.Protocol != models.ProtocolSSH {
			continue
		}
		if m.attempt(ctx, dev, provider, name, opts) {
			m.afterConnect(ctx, dev, provider)
			return true
		}
	}
	return false
}

func (m *ConnectionManager) attempt(ctx context.Context, dev *models.Device, provider session.Provider, via string, opts session.ConnectOptions) bool {
	m.metrics.ConnectionAttempts.Inc()
	attemptCtx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	if err := provider.Connect(attemptCtx, via, opts); err != nil {
		m.metrics.ConnectionFailures.Inc()
		m.logger.Info("connection attempt failed",
			zap.String("device", dev.Name),
			zap.String("via", via),
			zap.Error(err))
		provider.Destroy(via)
		return false
	}
	dev.Connected = true
	return true
}

// afterConnect enables CDP/LLDP on the fresh session when configuration is
// allowed, remembering what was changed so it can be reverted.
func (m *ConnectionManager) afterConnect(ctx context.Context, dev *models.Device, provider session.Provider) {
	if !m.opts.ConfigDiscovery || !provider.IsConnected() {
		return
	}

	if !provider.VerifyCDP(ctx) {
		if err := provider.ConfigureCDP(ctx); err != nil {
			m.logger.Error("configuring cdp failed",
				zap.String("device", dev.Name), zap.Error(err))
		} else {
			m.mu.Lock()
			m.cdpConfigured[dev.Name] = struct{}{}
			m.mu.Unlock()
		}
	}
	if !provider.VerifyLLDP(ctx) {
		if err := provider.ConfigureLLDP(ctx); err != nil {
			m.logger.Error("configuring lldp failed",
				zap.String("device", dev.Name), zap.Error(err))
		} else {
			m.mu.Lock()
			m.lldpConfigured[dev.Name] = struct{}{}
			m.mu.Unlock()
		}
	}
}

// Unconfigure reverts every CDP/LLDP enablement this run made, in parallel,
// best effort. Called once at the end of the run regardless of how the loop
// terminated.
func (m *ConnectionManager) Unconfigure(ctx context.Context) {
	var wg sync.WaitGroup
	for _, dev := range m.graph.Devices() {
		_, cdp := m.cdpConfigured[dev.Name]
		_, lldp := m.lldpConfigured[dev.Name]
		if !cdp && !lldp {
			continue
		}
		provider := m.providers.get(dev)
		if !provider.IsConnected() {
			continue
		}

		wg.Add(1)
		go func(dev *models.Device, cdp, lldp bool) {
			defer wg.Done()
			if cdp {
				if err := provider.UnconfigureCDP(ctx); err != nil {
					m.logger.Error("unconfiguring cdp failed",
						zap.String("device", dev.Name), zap.Error(err))
				}
			}
			if lldp {
				if err := provider.UnconfigureLLDP(ctx); err != nil {
					m.logger.Error("unconfiguring lldp failed",
						zap.String("device", dev.Name), zap.Error(err))
				}
			}
		}(dev, cdp, lldp)
	}
	wg.Wait()
}

// providerPool hands out one Provider per device, created lazily so
// sessions persist across rounds.
type providerPool struct {
	factory session.Factory
	lookup  session.DeviceLookup

	mu        sync.Mutex
	providers map[string]session.Provider
}

func newProviderPool(factory session.Factory, g *graph.Graph) *providerPool {
	return &providerPool{
		factory:   factory,
		lookup:    g.Device,
		providers: make(map[string]session.Provider),
	}
}

func (p *providerPool) get(dev *models.Device) session.Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	if provider, ok := p.providers[dev.Name]; ok {
		return provider
	}
	provider := p.factory(dev, p.lookup)
	p.providers[dev.Name] = provider
	return provider
}

// closeAll tears down every open session.
func (p *providerPool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, provider := range p.providers {
		provider.Close()
	}
}
