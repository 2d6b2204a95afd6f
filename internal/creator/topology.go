package creator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"topodisc/internal/discover"
	"topodisc/internal/reach"
	"topodisc/internal/session"
	"topodisc/internal/testbed"
	"topodisc/pkg/models"
)

// Topology grows a testbed by connecting to the seed devices, walking
// CDP/LLDP adjacency to a fixed point, and merging the result back into the
// seed document.
type Topology struct {
	opts     *discover.Options
	factory  session.Factory
	checker  reach.Checker
	metrics  *discover.Metrics
	logger   *zap.Logger
	recorder discover.Recorder

	// LastReport is the report of the most recent Generate call, kept for
	// the CLI's end-of-run summary.
	LastReport *discover.Report
}

var _ Creator = (*Topology)(nil)

// NewTopology builds the topology creator. The options must already be
// validated.
func NewTopology(opts *discover.Options, factory session.Factory, checker reach.Checker, metrics *discover.Metrics, recorder discover.Recorder, logger *zap.Logger) *Topology {
	return &Topology{
		opts:     opts,
		factory:  factory,
		checker:  checker,
		metrics:  metrics,
		recorder: recorder,
		logger:   logger,
	}
}

// Name implements Creator.
func (t *Topology) Name() string { return "topology" }

// Generate loads the seed document, runs discovery rounds until no further
// progress is possible, and returns the seed additively merged with
// everything found.
func (t *Topology) Generate(ctx context.Context) (*models.TestbedDocument, error) {
	seed, err := testbed.Load(t.opts.TestbedFile, t.logger)
	if err != nil {
		return nil, err
	}

	cfg := discover.EngineConfig{
		Graph:          seed.Graph,
		Options:        t.opts,
		Factory:        t.factory,
		Checker:        t.checker,
		Metrics:        t.metrics,
		Logger:         t.logger,
		Recorder:       t.recorder,
		CredentialPool: seed.CredentialPool,
	}
	if t.opts.SNMPCommunity != "" {
		cfg.SNMP = session.NewSNMPProber(t.opts.SNMPCommunity, t.opts.Timeout, t.logger)
	}

	engine, err := discover.NewEngine(cfg)
	if err != nil {
		return nil, err
	}

	report, runErr := engine.Run(ctx)
	t.LastReport = report
	if runErr != nil {
		return nil, fmt.Errorf("discovery: %w", runErr)
	}

	doc := testbed.MergeDocuments(seed.Document, testbed.BuildDocument(seed.Graph))
	// A seed that stores its passwords encoded must never gain plaintext
	// entries for discovered devices, regardless of the write flags.
	if seed.SecretsEncoded {
		testbed.EncodePasswords(doc)
	}
	return doc, nil
}
