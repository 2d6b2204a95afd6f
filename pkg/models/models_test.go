package models

import "testing"

func TestOSIsSupported(t *testing.T) {
	for _, os := range SupportedOS {
		if !os.IsSupported() {
			t.Errorf("IsSupported(%q) = false", os)
		}
	}
	if OSLearn.IsSupported() {
		t.Error("IsSupported(learn) = true, want false")
	}
	if OS("junos").IsSupported() {
		t.Error("IsSupported(junos) = true, want false")
	}
}

func TestNewDeviceDefaults(t *testing.T) {
	d := NewDevice("r1", "")
	if d.OS != OSLearn {
		t.Errorf("OS = %q, want learn sentinel for empty", d.OS)
	}
	if d.Type != "device" {
		t.Errorf("Type = %q, want device", d.Type)
	}
}

func TestAddConnectionOrder(t *testing.T) {
	d := NewDevice("r1", OSIOS)
	d.AddConnection("default", &ConnectionSpec{IP: "10.0.0.1"})
	d.AddConnection("alt1", &ConnectionSpec{IP: "10.0.0.2"})
	d.AddConnection("default", &ConnectionSpec{IP: "10.0.0.9"})

	names := d.ConnectionNames()
	if len(names) != 2 || names[0] != "default" || names[1] != "alt1" {
		t.Errorf("ConnectionNames() = %v", names)
	}
	if d.Connections["default"].IP != "10.0.0.9" {
		t.Error("re-adding a name did not replace the spec")
	}
}

func TestProxyChainExtendCopies(t *testing.T) {
	base := ProxyChain{{Device: "r1", Command: "ssh 10.0.0.2"}}
	extended := base.Extend(ProxyHop{Device: "r2", Command: "ssh 10.0.0.3"})

	if len(extended) != 2 {
		t.Fatalf("extended length = %d, want 2", len(extended))
	}
	if len(base) != 1 {
		t.Errorf("base mutated by Extend, length = %d", len(base))
	}
	if base.Direct() {
		t.Error("Direct() on one-hop chain = true")
	}
	if !(ProxyChain{}).Direct() {
		t.Error("Direct() on empty chain = false")
	}
}

func TestConnectionSpecAddr(t *testing.T) {
	tests := []struct {
		spec ConnectionSpec
		want string
	}{
		{ConnectionSpec{Protocol: ProtocolSSH, IP: "10.0.0.1"}, "10.0.0.1:22"},
		{ConnectionSpec{Protocol: ProtocolTelnet, IP: "10.0.0.1"}, "10.0.0.1:23"},
		{ConnectionSpec{Protocol: ProtocolSSH, IP: "10.0.0.1", Port: 2222}, "10.0.0.1:2222"},
	}
	for _, tt := range tests {
		if got := tt.spec.Addr(); got != tt.want {
			t.Errorf("Addr() = %q, want %q", got, tt.want)
		}
	}
}

func TestDestroyedSpecStaysDestroyed(t *testing.T) {
	spec := &ConnectionSpec{IP: "10.0.0.1"}
	if spec.Destroyed() {
		t.Error("new spec reported destroyed")
	}
	spec.Destroy()
	if !spec.Destroyed() {
		t.Error("Destroy() did not mark the spec")
	}
}

func TestSSHHopCommand(t *testing.T) {
	if got := SSHHopCommand("admin", "10.0.0.2"); got != "ssh -l admin 10.0.0.2" {
		t.Errorf("SSHHopCommand() = %q", got)
	}
	if got := SSHHopCommand("", "10.0.0.2"); got != "ssh 10.0.0.2" {
		t.Errorf("SSHHopCommand() without user = %q", got)
	}
}

func TestLinkConnectIdempotent(t *testing.T) {
	link := &Link{Name: "Link_0"}
	intf := &Interface{Name: "Gi0/0"}

	link.Connect(intf)
	link.Connect(intf)
	if len(link.Interfaces) != 1 {
		t.Errorf("Interfaces = %d, want 1 after duplicate Connect", len(link.Interfaces))
	}
	if intf.Link != link {
		t.Error("back-reference not set")
	}
}
