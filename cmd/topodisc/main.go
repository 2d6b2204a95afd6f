// Command topodisc grows a testbed inventory by walking CDP/LLDP adjacency
// from the devices already in it.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"topodisc/internal/creator"
	"topodisc/internal/discover"
	"topodisc/internal/reach"
	"topodisc/internal/session"
	"topodisc/internal/store"
	"topodisc/internal/testbed"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to configuration file")
		testbedFile = flag.String("testbed", "", "seed testbed file to grow (required)")
		output      = flag.String("output", "", "output path (defaults to the testbed file)")
		creatorName = flag.String("creator", "topology", "testbed creator to run")

		configDiscovery = flag.Bool("config-discovery", false, "enable CDP/LLDP where off, reverting at the end")
		allInterfaces   = flag.Bool("all-interfaces", false, "record every interface of known devices, not just connected ones")
		onlyLinks       = flag.Bool("only-links", false, "single pass over seed devices, add links but no new devices")
		sshOnly         = flag.Bool("ssh-only", false, "only attempt ssh connections")

		excludeNetworks   = flag.String("exclude-networks", "", "comma-separated CIDR ranges to ignore")
		excludeInterfaces = flag.String("exclude-interfaces", "", "comma-separated interface names to ignore")
		aliasArg          = flag.String("alias", "", "preferred connections, device:conn[,device:conn...]")
		timeoutFlag       = flag.Duration("timeout", 0, "per-device connection timeout")
		limitFlag         = flag.Int("limit", 0, "max simultaneous device operations")

		loginArg        = flag.String("universal-login", "", "credentials for discovered devices, \"username password\"")
		askCredentials  = flag.Bool("ask-credentials", false, "defer discovered-device passwords to connect-time prompts")
		snmpCommunity   = flag.String("snmp-community", "", "SNMPv2c community for the LLDP-MIB supplement")
		encodePasswords = flag.Bool("encode-passwords", false, "write credential passwords encoded")

		dbPath      = flag.String("db", "", "sqlite path for run history (empty disables)")
		metricsAddr = flag.String("metrics-addr", "", "listen address for prometheus metrics (empty disables)")
		development = flag.Bool("dev", false, "development logging")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *development || cfg.GetBool("log.development") {
		*development = true
	}

	logger, err := newLogger(*development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	opts := &discover.Options{
		TestbedFile:     *testbedFile,
		Output:          *output,
		ConfigDiscovery: *configDiscovery,
		AllInterfaces:   *allInterfaces,
		OnlyLinks:       *onlyLinks,
		SSHOnly:         *sshOnly,
		Timeout:         *timeoutFlag,
		Limit:           *limitFlag,
		AskCredentials:  *askCredentials,
		SNMPCommunity:   *snmpCommunity,
		EncodePasswords: *encodePasswords,
	}
	if opts.Timeout == 0 {
		opts.Timeout = cfg.GetDuration("discovery.timeout")
	}
	if opts.Limit == 0 {
		opts.Limit = cfg.GetInt("discovery.limit")
	}
	if opts.SNMPCommunity == "" {
		opts.SNMPCommunity = cfg.GetString("snmp.community")
	}
	opts.ExcludeNetworks = splitList(*excludeNetworks)
	if len(opts.ExcludeNetworks) == 0 {
		opts.ExcludeNetworks = cfg.GetStringSlice("discovery.exclude_networks")
	}
	opts.ExcludeInterfaces = splitList(*excludeInterfaces)
	if len(opts.ExcludeInterfaces) == 0 {
		opts.ExcludeInterfaces = cfg.GetStringSlice("discovery.exclude_interfaces")
	}
	if *aliasArg != "" {
		if opts.Alias, err = discover.ParseAliasArg(*aliasArg); err != nil {
			logger.Fatal("invalid alias argument", zap.Error(err))
		}
	}
	if opts.UniversalCred, err = discover.ParseLoginArg(*loginArg); err != nil {
		logger.Fatal("invalid universal login", zap.Error(err))
	}
	if err := opts.Validate(); err != nil {
		logger.Fatal("invalid options", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	metrics := discover.NewMetrics(registry)
	if addr := firstNonEmpty(*metricsAddr, cfg.GetString("metrics.addr")); addr != "" {
		go serveMetrics(addr, registry, logger)
	}

	var recorder discover.Recorder
	if path := firstNonEmpty(*dbPath, cfg.GetString("store.path")); path != "" {
		db, err := store.New(path)
		if err != nil {
			logger.Fatal("opening run history store failed", zap.Error(err))
		}
		defer db.Close()
		repo, err := store.NewRunRepo(ctx, db)
		if err != nil {
			logger.Fatal("preparing run history store failed", zap.Error(err))
		}
		recorder = repo
	}

	creators := creator.NewRegistry(logger)
	topology := creator.NewTopology(
		opts,
		session.NewSSHProvider(logger),
		reach.NewPingChecker(opts.Timeout, logger),
		metrics,
		recorder,
		logger,
	)
	if err := creators.Register(topology); err != nil {
		logger.Fatal("registering creator failed", zap.Error(err))
	}

	c, err := creators.Get(*creatorName)
	if err != nil {
		logger.Fatal("resolving creator failed", zap.Error(err))
	}

	doc, err := c.Generate(ctx)
	if err != nil {
		logger.Fatal("testbed generation failed", zap.Error(err))
	}
	if err := testbed.Write(opts.Output, doc, testbed.WriteOptions{
		EncodePasswords: opts.EncodePasswords,
	}); err != nil {
		logger.Fatal("writing testbed failed", zap.Error(err))
	}

	printSummary(topology.LastReport, opts.Output)
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}

// printSummary writes the operator-facing round report to stdout; the logs
// carry the same information with more detail.
func printSummary(report *discover.Report, output string) {
	if report == nil {
		return
	}
	for _, round := range report.Rounds {
		fmt.Printf("round %d: connected %d, failed %d, skipped %d, new devices %s, new links %d\n",
			round.Round,
			len(round.Connect.Connected),
			len(round.Connect.Failed),
			len(round.Connect.Skipped),
			formatNames(round.NewDevices),
			round.NewLinks)
	}
	fmt.Printf("done: %d device(s) added, %d link(s) added, written to %s\n",
		len(report.DevicesAdded), report.LinksAdded, output)
}

func formatNames(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(arg string) []string {
	var out []string
	for _, part := range strings.Split(arg, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
