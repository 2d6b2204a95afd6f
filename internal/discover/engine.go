package discover

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"topodisc/internal/graph"
	"topodisc/internal/reach"
	"topodisc/internal/session"
	"topodisc/pkg/models"
)

// RoundSummary is the operator-facing outcome of one discovery round.
type RoundSummary struct {
	Round      int
	Connect    ConnectReport
	NewDevices []string
	NewLinks   int
}

// Report aggregates the whole run.
type Report struct {
	Rounds       []RoundSummary
	DevicesAdded []string
	LinksAdded   int
}

// RunRecord is what gets persisted about a finished run.
type RunRecord struct {
	ID           string
	TestbedFile  string
	StartedAt    time.Time
	EndedAt      time.Time
	Status       string
	Rounds       int
	DevicesAdded []string
	LinksAdded   int
}

// Recorder persists run history. Implementations must tolerate being called
// once per run at most.
type Recorder interface {
	RecordRun(ctx context.Context, run *RunRecord) error
}

// AddressProber supplies neighbor management addresses learned outside the
// CLI path. *session.SNMPProber implements it.
type AddressProber interface {
	NeighborAddresses(host string) ([]string, error)
}

// EngineConfig wires an Engine. Graph, Options, Factory, Checker, Metrics
// and Logger are required; the rest are optional.
type EngineConfig struct {
	Graph   *graph.Graph
	Options *Options
	Factory session.Factory
	Checker reach.Checker
	Metrics *Metrics
	Logger  *zap.Logger

	Recorder Recorder
	SNMP     AddressProber

	// CredentialPool is the harvested credential set from the seed
	// document, inherited by newly discovered devices.
	CredentialPool map[string]models.Credential
}

// Engine runs the discovery loop: connect, collect, normalize, merge, and
// repeat until every known device has been visited (or a single pass in
// only-links mode). The graph is mutated exclusively from Run's goroutine
// between the parallel phases.
type Engine struct {
	graph      *graph.Graph
	opts       *Options
	logger     *zap.Logger
	metrics    *Metrics
	providers  *providerPool
	manager    *ConnectionManager
	collector  *Collector
	normalizer *Normalizer
	checker    reach.Checker
	snmp       AddressProber
	recorder   Recorder
	credPool   map[string]models.Credential
}

// NewEngine validates the config and assembles the engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	switch {
	case cfg.Graph == nil:
		return nil, fmt.Errorf("engine: graph is required")
	case cfg.Options == nil:
		return nil, fmt.Errorf("engine: options are required")
	case cfg.Factory == nil:
		return nil, fmt.Errorf("engine: session factory is required")
	case cfg.Checker == nil:
		return nil, fmt.Errorf("engine: reachability checker is required")
	case cfg.Metrics == nil:
		return nil, fmt.Errorf("engine: metrics are required")
	case cfg.Logger == nil:
		return nil, fmt.Errorf("engine: logger is required")
	}

	providers := newProviderPool(cfg.Factory, cfg.Graph)
	return &Engine{
		graph:      cfg.Graph,
		opts:       cfg.Options,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		providers:  providers,
		manager:    NewConnectionManager(cfg.Graph, providers, cfg.Options, cfg.Metrics, cfg.Logger),
		collector:  NewCollector(cfg.Graph, providers, cfg.Options, cfg.Logger),
		normalizer: NewNormalizer(cfg.Graph, cfg.Options, cfg.Logger),
		checker:    cfg.Checker,
		snmp:       cfg.SNMP,
		recorder:   cfg.Recorder,
		credPool:   cfg.CredentialPool,
	}, nil
}

// Run executes discovery rounds to a fixed point. Protocol enablement made
// along the way is reverted best-effort before returning, however the loop
// terminated.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	report := &Report{}

	defer func() {
		e.manager.Unconfigure(ctx)
		e.providers.closeAll()
	}()

	round := 0
	for {
		round++
		e.metrics.Rounds.Inc()
		e.logger.Info("discovery round starting",
			zap.Int("round", round),
			zap.Int("devices", e.graph.Len()),
			zap.Int("visited", e.graph.VisitedCount()))

		connect := e.manager.ConnectAll(ctx)
		records, newVisits := e.collector.Collect(ctx)

		cands := graph.NewCandidateList()
		conns := make(map[string]*graph.ConnectionSet, len(records))
		for _, device := range e.graph.Names() {
			rec, ok := records[device]
			if !ok {
				continue
			}
			conns[device] = e.normalizer.Normalize(device, rec, cands)
		}
		e.supplementFromSNMP(records, cands)

		newDevices := e.mergeCandidates(ctx, cands)
		e.mergeKnownInterfaces(ctx, cands, newDevices)
		newLinks := e.mergeLinks(conns)

		summary := RoundSummary{
			Round:      round,
			Connect:    connect,
			NewDevices: newDevices,
			NewLinks:   newLinks,
		}
		report.Rounds = append(report.Rounds, summary)
		report.DevicesAdded = append(report.DevicesAdded, newDevices...)
		report.LinksAdded += newLinks

		e.logger.Info("discovery round finished",
			zap.Int("round", round),
			zap.Strings("connected", connect.Connected),
			zap.Strings("failed", connect.Failed),
			zap.Strings("skipped", connect.Skipped),
			zap.Strings("new_devices", newDevices))

		if e.opts.OnlyLinks {
			break
		}
		if e.graph.Len() <= e.graph.VisitedCount() {
			break
		}
		// Devices that fail connection every round stay unvisited; once a
		// round makes no progress at all the loop cannot converge further.
		if len(newDevices) == 0 && newVisits == 0 && newLinks == 0 {
			e.logger.Warn("discovery stalled with unvisited devices remaining",
				zap.Int("devices", e.graph.Len()),
				zap.Int("visited", e.graph.VisitedCount()))
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	e.collectInterfaceAddresses(ctx)
	e.recordRun(ctx, started, report)
	return report, nil
}

// supplementFromSNMP walks each collected device's LLDP-MIB for neighbor
// management addresses. Addresses not accounted for by any known device or
// candidate become address-named candidates with an unclassified OS.
func (e *Engine) supplementFromSNMP(records map[string]Record, cands *graph.CandidateList) {
	if e.snmp == nil {
		return
	}
	known := e.knownAddresses(cands)
	// Walk in graph order so supplemental candidates enter the list the same
	// way on every run.
	for _, device := range e.graph.Names() {
		if _, ok := records[device]; !ok {
			continue
		}
		dev := e.graph.Device(device)
		target := primaryAddress(dev)
		if target == "" {
			continue
		}
		addrs, err := e.snmp.NeighborAddresses(target)
		if err != nil {
			e.logger.Debug("snmp supplement failed",
				zap.String("device", device), zap.Error(err))
			continue
		}
		for _, addr := range addrs {
			if _, ok := known[addr]; ok {
				continue
			}
			if e.opts.ExcludedAddress(addr) || e.opts.OnlyLinks {
				continue
			}
			known[addr] = struct{}{}
			cands.Add(addr, "", map[string]graph.AddrSource{addr: graph.AddrManagement},
				models.OSLearn, device)
		}
	}
}

// knownAddresses indexes every address already referenced by a device
// connection or a current candidate.
func (e *Engine) knownAddresses(cands *graph.CandidateList) map[string]struct{} {
	known := make(map[string]struct{})
	for _, dev := range e.graph.Devices() {
		for _, spec := range dev.Connections {
			if spec.IP != "" {
				known[spec.IP] = struct{}{}
			}
		}
	}
	for _, host := range cands.Hosts() {
		for addr := range cands.Get(host).Addrs {
			known[addr] = struct{}{}
		}
	}
	return known
}

// mergeCandidates constructs graph devices for candidates not yet known:
// classified OS, inherited credentials, and one connection spec per
// discovered address. Addresses without a direct path get a proxy chain
// through the finder; chains stay flat, extending the finder's own chain by
// one hop instead of nesting.
func (e *Engine) mergeCandidates(ctx context.Context, cands *graph.CandidateList) []string {
	var added []string
	for _, host := range cands.Hosts() {
		if e.graph.Has(host) {
			continue
		}
		cand := cands.Get(host)
		dev := models.NewDevice(host, cand.OS)
		dev.Credentials = e.inheritedCredentials(cand)

		finderChain := e.finderChain(cand.Finder)
		user := defaultUsername(dev)
		for i, addr := range sortedKeys(cand.Addrs) {
			name := "default"
			if i > 0 {
				name = fmt.Sprintf("alt%d", i)
			}
			spec := &models.ConnectionSpec{Protocol: models.ProtocolSSH, IP: addr}

			direct := cand.Addrs[addr] == graph.AddrManagement ||
				e.checker.Reachable(ctx, addr)
			if !direct {
				spec.Proxy = finderChain.Extend(models.ProxyHop{
					Device:  cand.Finder,
					Command: models.SSHHopCommand(user, addr),
				})
			}
			dev.AddConnection(name, spec)
		}

		if err := e.graph.Add(dev); err != nil {
			e.logger.Error("adding discovered device failed",
				zap.String("device", host), zap.Error(err))
			continue
		}
		for _, port := range sortedSet(cand.Ports) {
			if port == "" {
				continue
			}
			if _, err := e.graph.Interface(host, port); err != nil {
				e.logger.Error("adding discovered interface failed",
					zap.String("device", host), zap.String("interface", port), zap.Error(err))
			}
		}

		e.metrics.DevicesDiscovered.Inc()
		e.logger.Info("new device added to testbed",
			zap.String("device", host),
			zap.String("os", string(cand.OS)),
			zap.String("found_by", cand.Finder))
		added = append(added, host)
	}
	return added
}

// finderChain returns the proxy chain of the finder's primary connection,
// or nil when the finder is directly reachable.
func (e *Engine) finderChain(finder string) models.ProxyChain {
	dev := e.graph.Device(finder)
	if dev == nil {
		return nil
	}
	for _, name := range dev.ConnectionNames() {
		return dev.Connections[name].Proxy
	}
	return nil
}

// inheritedCredentials picks the credential set for a new device: explicit
// universal credentials, prompt-at-connect markers, the harvested seed
// pool, or a copy of the finder's credentials, in that order.
func (e *Engine) inheritedCredentials(cand *graph.Candidate) map[string]models.Credential {
	creds := make(map[string]models.Credential)
	switch {
	case e.opts.UniversalCred != nil:
		creds["default"] = *e.opts.UniversalCred
	case e.opts.AskCredentials:
		creds["default"] = models.Credential{Username: "%ASK{}", Password: "%ASK{}"}
	case len(e.credPool) > 0:
		for name, cred := range e.credPool {
			creds[name] = cred
		}
	default:
		if finder := e.graph.Device(cand.Finder); finder != nil {
			for name, cred := range finder.Credentials {
				creds[name] = cred
			}
		}
	}
	return creds
}

// mergeKnownInterfaces adds interfaces to devices that were already in the
// graph before this round: the full live interface list in all-interfaces
// mode, otherwise only the ports observed in this round's connections.
func (e *Engine) mergeKnownInterfaces(ctx context.Context, cands *graph.CandidateList, justAdded []string) {
	added := make(map[string]struct{}, len(justAdded))
	for _, name := range justAdded {
		added[name] = struct{}{}
	}

	for _, host := range cands.Hosts() {
		if _, isNew := added[host]; isNew {
			continue
		}
		dev := e.graph.Device(host)
		if dev == nil {
			continue
		}

		if e.opts.AllInterfaces && dev.Connected {
			names, err := e.providers.get(dev).ListInterfaces(ctx)
			if err != nil {
				e.logger.Error("interface enumeration failed",
					zap.String("device", host), zap.Error(err))
			} else {
				for _, name := range names {
					if _, err := e.graph.Interface(host, name); err != nil {
						e.logger.Error("adding enumerated interface failed",
							zap.String("device", host), zap.Error(err))
					}
				}
				continue
			}
		}

		for _, port := range sortedSet(cands.Get(host).Ports) {
			if port == "" {
				continue
			}
			if _, err := e.graph.Interface(host, port); err != nil {
				e.logger.Error("adding observed interface failed",
					zap.String("device", host), zap.Error(err))
			}
		}
	}
}

// mergeLinks applies this round's normalized connections to the graph. An
// unlinked local interface starts a new link joining it with every remote
// endpoint; an already-linked interface has missing endpoints appended.
// Interfaces already belonging to some other link are left where they are:
// links are never merged retroactively.
func (e *Engine) mergeLinks(conns map[string]*graph.ConnectionSet) int {
	created := 0
	for _, device := range e.graph.Names() {
		set, ok := conns[device]
		if !ok {
			continue
		}
		for _, intfName := range set.Interfaces() {
			intf, err := e.graph.Interface(device, intfName)
			if err != nil {
				e.logger.Error("resolving local interface failed", zap.Error(err))
				continue
			}

			link := intf.Link
			if link == nil {
				link = e.graph.NewLink()
				link.Connect(intf)
				created++
				e.metrics.LinksCreated.Inc()
			}
			for _, ep := range set.Endpoints(intfName) {
				remote, err := e.graph.Interface(ep.Host, ep.Port)
				if err != nil {
					e.logger.Error("resolving remote interface failed", zap.Error(err))
					continue
				}
				if remote.Link != nil {
					continue
				}
				link.Connect(remote)
			}
		}
	}
	return created
}

// collectInterfaceAddresses fills in IPv4 addresses for generated
// interfaces, in parallel across connected devices.
func (e *Engine) collectInterfaceAddresses(ctx context.Context) {
	var wg sync.WaitGroup
	for _, dev := range e.graph.Devices() {
		if !dev.Connected || !dev.OS.IsSupported() || len(dev.Interfaces) == 0 {
			continue
		}
		wg.Add(1)
		go func(dev *models.Device) {
			defer wg.Done()
			provider := e.providers.get(dev)
			for _, intf := range dev.Interfaces {
				if intf.IPv4 != "" {
					continue
				}
				addr, err := provider.GetInterfaceIPv4(ctx, intf.Name)
				if err != nil {
					e.logger.Debug("interface address lookup failed",
						zap.String("device", dev.Name),
						zap.String("interface", intf.Name),
						zap.Error(err))
					continue
				}
				intf.IPv4 = addr
			}
		}(dev)
	}
	wg.Wait()
}

func (e *Engine) recordRun(ctx context.Context, started time.Time, report *Report) {
	if e.recorder == nil {
		return
	}
	run := &RunRecord{
		ID:           uuid.New().String(),
		TestbedFile:  e.opts.TestbedFile,
		StartedAt:    started.UTC(),
		EndedAt:      time.Now().UTC(),
		Status:       "completed",
		Rounds:       len(report.Rounds),
		DevicesAdded: report.DevicesAdded,
		LinksAdded:   report.LinksAdded,
	}
	if err := e.recorder.RecordRun(ctx, run); err != nil {
		e.logger.Error("recording run history failed", zap.Error(err))
	}
}

// defaultUsername is the username proxy hop commands log in with: the
// device's default credential, falling back to any credential it has.
func defaultUsername(dev *models.Device) string {
	if cred, ok := dev.Credentials["default"]; ok {
		return cred.Username
	}
	for _, name := range sortedKeys(dev.Credentials) {
		return dev.Credentials[name].Username
	}
	return ""
}

// primaryAddress returns the IP of a device's first declared connection.
func primaryAddress(dev *models.Device) string {
	if dev == nil {
		return ""
	}
	for _, name := range dev.ConnectionNames() {
		if ip := dev.Connections[name].IP; ip != "" {
			return ip
		}
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSet(m map[string]struct{}) []string {
	return sortedKeys(m)
}
