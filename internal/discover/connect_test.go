package discover

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"topodisc/internal/graph"
	"topodisc/internal/testutil"
	"topodisc/pkg/models"
)

func newTestManager(t *testing.T, g *graph.Graph, opts *Options, net *fakeNetwork) *ConnectionManager {
	t.Helper()
	if opts.TestbedFile == "" {
		opts.TestbedFile = "testbed.yaml"
	}
	if err := opts.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return NewConnectionManager(g, newProviderPool(net.factory, g), opts,
		NewMetrics(prometheus.NewRegistry()), testutil.Logger())
}

// A destroyed connection spec stays dead even when it is the preferred
// alias: the manager falls through to the remaining specs instead of
// re-attempting it every round.
func TestConnectAliasDestroyedFallsThrough(t *testing.T) {
	net := newFakeNetwork()

	g := graph.New()
	dev := testutil.NewDevice("r1", testutil.WithConnection("mgmt", &models.ConnectionSpec{
		Protocol: models.ProtocolSSH,
		IP:       "192.0.2.99",
	}))
	dev.Connections["mgmt"].Destroy()
	g.Add(dev)

	opts := &Options{Alias: map[string]string{"r1": "mgmt"}}
	m := newTestManager(t, g, opts, net)

	report := m.ConnectAll(context.Background())
	if len(report.Connected) != 1 || report.Connected[0] != "r1" {
		t.Fatalf("Connected = %v, want [r1] via the surviving spec", report.Connected)
	}
	for _, attempt := range net.attempts {
		if attempt == "r1/mgmt" {
			t.Fatalf("attempts = %v, destroyed alias spec was re-attempted", net.attempts)
		}
	}
	if len(net.attempts) != 1 || net.attempts[0] != "r1/default" {
		t.Errorf("attempts = %v, want [r1/default]", net.attempts)
	}
}

func TestConnectAliasPreferred(t *testing.T) {
	net := newFakeNetwork()

	g := graph.New()
	g.Add(testutil.NewDevice("r1", testutil.WithConnection("mgmt", &models.ConnectionSpec{
		Protocol: models.ProtocolSSH,
		IP:       "192.0.2.99",
	})))

	opts := &Options{Alias: map[string]string{"r1": "mgmt"}}
	m := newTestManager(t, g, opts, net)

	if report := m.ConnectAll(context.Background()); len(report.Connected) != 1 {
		t.Fatalf("Connected = %v, want [r1]", report.Connected)
	}
	if len(net.attempts) != 1 || net.attempts[0] != "r1/mgmt" {
		t.Errorf("attempts = %v, want the alias tried first", net.attempts)
	}
}
