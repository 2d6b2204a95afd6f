package graph

import (
	"testing"

	"topodisc/pkg/models"
)

func TestAddAndLookup(t *testing.T) {
	g := New()
	if err := g.Add(models.NewDevice("r1", models.OSIOS)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !g.Has("r1") {
		t.Error("Has(r1) = false, want true")
	}
	if g.Device("r1") == nil {
		t.Error("Device(r1) = nil")
	}
	if g.Device("r9") != nil {
		t.Error("Device(r9) != nil for unknown device")
	}
}

func TestAddDuplicate(t *testing.T) {
	g := New()
	if err := g.Add(models.NewDevice("r1", models.OSIOS)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := g.Add(models.NewDevice("r1", models.OSNXOS)); err == nil {
		t.Fatal("Add() expected error for duplicate name, got nil")
	}
}

func TestAddEmptyName(t *testing.T) {
	g := New()
	if err := g.Add(models.NewDevice("", models.OSIOS)); err == nil {
		t.Fatal("Add() expected error for empty name, got nil")
	}
}

func TestNamesPreserveInsertionOrder(t *testing.T) {
	g := New()
	for _, name := range []string{"r3", "r1", "r2"} {
		if err := g.Add(models.NewDevice(name, models.OSIOS)); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}
	got := g.Names()
	want := []string{"r3", "r1", "r2"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestVisitedCount(t *testing.T) {
	g := New()
	a := models.NewDevice("a", models.OSIOS)
	b := models.NewDevice("b", models.OSIOS)
	g.Add(a)
	g.Add(b)

	if n := g.VisitedCount(); n != 0 {
		t.Errorf("VisitedCount() = %d, want 0", n)
	}
	a.Visited = true
	if n := g.VisitedCount(); n != 1 {
		t.Errorf("VisitedCount() = %d, want 1", n)
	}
}

func TestInterfaceLazyCreation(t *testing.T) {
	g := New()
	g.Add(models.NewDevice("r1", models.OSIOS))

	intf, err := g.Interface("r1", "GigabitEthernet0/1")
	if err != nil {
		t.Fatalf("Interface() error = %v", err)
	}
	if intf.Type != "gigabitethernet" {
		t.Errorf("Type = %q, want gigabitethernet", intf.Type)
	}

	again, err := g.Interface("r1", "GigabitEthernet0/1")
	if err != nil {
		t.Fatalf("Interface() second call error = %v", err)
	}
	if again != intf {
		t.Error("Interface() returned a new object for an existing interface")
	}

	if _, err := g.Interface("nope", "Ethernet0/0"); err == nil {
		t.Error("Interface() expected error for unknown device, got nil")
	}
}

func TestNewLinkNames(t *testing.T) {
	g := New()
	if name := g.NewLink().Name; name != "Link_0" {
		t.Errorf("first link name = %q, want Link_0", name)
	}
	if name := g.NewLink().Name; name != "Link_1" {
		t.Errorf("second link name = %q, want Link_1", name)
	}
}

func TestNewLinkSkipsSeededNames(t *testing.T) {
	g := New()
	g.Link("Link_0")
	if name := g.NewLink().Name; name != "Link_1" {
		t.Errorf("NewLink() after seeding Link_0 = %q, want Link_1", name)
	}
}

func TestLinkReusesByName(t *testing.T) {
	g := New()
	a := g.Link("uplink")
	b := g.Link("uplink")
	if a != b {
		t.Error("Link() returned distinct objects for the same name")
	}
	if len(g.Links()) != 1 {
		t.Errorf("Links() length = %d, want 1", len(g.Links()))
	}
}

func TestInterfaceType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"GigabitEthernet0/1", "gigabitethernet"},
		{"Ethernet0/3", "ethernet"},
		{"mgmt0", "mgmt"},
		{"Loopback0", "loopback"},
		{"Port-channel10", "port-channel"},
		{"Vlan", "vlan"},
	}
	for _, tt := range tests {
		if got := InterfaceType(tt.name); got != tt.want {
			t.Errorf("InterfaceType(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
