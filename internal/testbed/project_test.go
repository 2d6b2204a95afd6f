package testbed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"topodisc/internal/graph"
	"topodisc/internal/testutil"
	"topodisc/pkg/models"
)

func twoDeviceGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	g.Add(testutil.NewDevice("r1", testutil.WithOS(models.OSIOSXE)))
	g.Add(testutil.NewDevice("r2"))

	a, _ := g.Interface("r1", "Gi0/0")
	b, _ := g.Interface("r2", "Gi0/1")
	link := g.NewLink()
	link.Connect(a)
	link.Connect(b)
	a.IPv4 = "10.0.12.1/24"
	return g
}

func TestBuildDocument(t *testing.T) {
	doc := BuildDocument(twoDeviceGraph(t))

	entry, ok := doc.Devices["r1"]
	if !ok {
		t.Fatal("r1 missing from document")
	}
	if entry.OS != "iosxe" {
		t.Errorf("r1 OS = %q", entry.OS)
	}
	conn := entry.Connections["default"]
	if conn == nil || conn.IP != "192.0.2.10" || conn.Protocol != "ssh" {
		t.Errorf("r1 default connection = %+v", conn)
	}

	topo := doc.Topology["r1"]
	if topo == nil {
		t.Fatal("r1 topology missing")
	}
	intf := topo.Interfaces["Gi0/0"]
	if intf == nil || intf.Link != "Link_0" || intf.IPv4 != "10.0.12.1/24" {
		t.Errorf("r1 Gi0/0 entry = %+v", intf)
	}
	peer := doc.Topology["r2"].Interfaces["Gi0/1"]
	if peer == nil || peer.Link != "Link_0" {
		t.Errorf("r2 Gi0/1 entry = %+v", peer)
	}
}

func TestMergeAdditive(t *testing.T) {
	base := models.NewTestbedDocument()
	base.Devices["r1"] = &models.DeviceEntry{
		Type: "router",
		OS:   "ios",
		Connections: map[string]*models.ConnectionEntry{
			"console": {Protocol: "telnet", IP: "10.255.9.1", Port: 2001},
		},
	}

	update := models.NewTestbedDocument()
	update.Devices["r1"] = &models.DeviceEntry{
		Type: "router",
		OS:   "iosxe",
		Connections: map[string]*models.ConnectionEntry{
			"default": {Protocol: "ssh", IP: "10.255.0.1"},
		},
	}
	update.Devices["r2"] = &models.DeviceEntry{Type: "router", OS: "ios"}

	merged := MergeDocuments(base, update)

	// r1 came from the seed: its entry stays exactly as written there.
	r1 := merged.Devices["r1"]
	if r1.OS != "ios" {
		t.Errorf("merged OS = %q, want seed entry untouched", r1.OS)
	}
	if r1.Connections["console"] == nil {
		t.Error("merge dropped base-only connection")
	}
	if r1.Connections["default"] != nil {
		t.Error("merge rewrote an existing device's connections")
	}
	if merged.Devices["r2"] == nil {
		t.Error("merge missing new device r2")
	}
}

func TestMergeLeavesSeededDevicesUntouched(t *testing.T) {
	base := models.NewTestbedDocument()
	base.Devices["r1"] = &models.DeviceEntry{
		OS: "iosxe",
		Credentials: map[string]models.Credential{
			"default": {Username: "admin", Password: EncodeSecret("hunter2")},
		},
	}

	update := models.NewTestbedDocument()
	update.Devices["r1"] = &models.DeviceEntry{
		OS: string(models.OSLearn),
		Credentials: map[string]models.Credential{
			"default": {Username: "admin", Password: "hunter2"},
		},
	}

	merged := MergeDocuments(base, update)
	r1 := merged.Devices["r1"]
	if r1.OS != "iosxe" {
		t.Errorf("OS = %q, want the seed's classification kept", r1.OS)
	}
	if got := r1.Credentials["default"].Password; got != EncodeSecret("hunter2") {
		t.Errorf("password = %q, want the seed's encoded form kept", got)
	}
}

func TestMergeKeepsExistingLinkAssignment(t *testing.T) {
	base := models.NewTestbedDocument()
	base.Topology["r1"] = &models.TopologyEntry{
		Interfaces: map[string]*models.InterfaceEntry{
			"Gi0/0": {Type: "gigabitethernet", Link: "Link_0"},
		},
	}

	update := models.NewTestbedDocument()
	update.Topology["r1"] = &models.TopologyEntry{
		Interfaces: map[string]*models.InterfaceEntry{
			"Gi0/0": {Type: "gigabitethernet", Link: "Link_9"},
		},
	}

	merged := MergeDocuments(base, update)
	if link := merged.Topology["r1"].Interfaces["Gi0/0"].Link; link != "Link_0" {
		t.Errorf("link = %q, interfaces must keep their first link", link)
	}
}

func TestMergeIdempotent(t *testing.T) {
	g := twoDeviceGraph(t)
	doc := BuildDocument(g)

	once := MergeDocuments(models.NewTestbedDocument(), doc)
	twice := MergeDocuments(once, BuildDocument(g))

	if len(twice.Devices) != 2 {
		t.Errorf("devices after re-merge = %d, want 2", len(twice.Devices))
	}
	if len(twice.Topology["r1"].Interfaces) != 1 {
		t.Errorf("r1 interfaces after re-merge = %d, want 1", len(twice.Topology["r1"].Interfaces))
	}
}

func TestWriteRoundTrip(t *testing.T) {
	g := twoDeviceGraph(t)
	doc := BuildDocument(g)

	path := filepath.Join(t.TempDir(), "testbed.yaml")
	if err := Write(path, doc, WriteOptions{}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	result, err := Load(path, testutil.Logger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if result.Graph.Len() != 2 {
		t.Errorf("reloaded devices = %d, want 2", result.Graph.Len())
	}
	a, _ := result.Graph.Interface("r1", "Gi0/0")
	b, _ := result.Graph.Interface("r2", "Gi0/1")
	if a.Link == nil || a.Link != b.Link {
		t.Error("link lost in round trip")
	}
}

// A seed that stores its passwords encoded must survive a full
// load-merge-write cycle without the plaintext ever reaching disk, even
// when encoding is not requested for the write.
func TestWriteKeepsSeedPasswordsEncoded(t *testing.T) {
	seed := `
devices:
  r1:
    os: ios
    credentials:
      default:
        username: admin
        password: "` + EncodeSecret("hunter2") + `"
    connections:
      default:
        ip: 10.0.0.1
`
	result, err := Parse([]byte(seed), testutil.Logger())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	merged := MergeDocuments(result.Document, BuildDocument(result.Graph))
	path := filepath.Join(t.TempDir(), "testbed.yaml")
	if err := Write(path, merged, WriteOptions{}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Error("written document leaks the plaintext password")
	}
	if !strings.Contains(string(data), EncodeSecret("hunter2")) {
		t.Error("written document lost the encoded password")
	}
}

func TestWriteEncodesPasswords(t *testing.T) {
	g := graph.New()
	g.Add(testutil.NewDevice("r1"))
	doc := BuildDocument(g)

	path := filepath.Join(t.TempDir(), "testbed.yaml")
	if err := Write(path, doc, WriteOptions{EncodePasswords: true}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "%ENC{") {
		t.Error("written document has no encoded password")
	}
	if strings.Contains(string(data), "password: lab") {
		t.Error("written document leaks the plaintext password")
	}

	// Reload decodes back to the plaintext.
	result, err := Load(path, testutil.Logger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := result.Graph.Device("r1").Credentials["default"].Password; got != "lab" {
		t.Errorf("reloaded password = %q, want lab", got)
	}
}
