package graph

import (
	"testing"

	"topodisc/pkg/models"
)

func TestCandidateMergeKeepsFirstClassifiedOS(t *testing.T) {
	c := NewCandidateList()
	c.Add("r2", "Gi0/1", nil, models.OSLearn, "r1")
	c.Add("r2", "Gi0/2", nil, models.OSIOSXE, "r3")
	c.Add("r2", "Gi0/3", nil, models.OSNXOS, "r4")

	cand := c.Get("r2")
	if cand.OS != models.OSIOSXE {
		t.Errorf("OS = %q, want %q (first classified sighting wins)", cand.OS, models.OSIOSXE)
	}
	if cand.Finder != "r1" {
		t.Errorf("Finder = %q, want r1 (first sighting)", cand.Finder)
	}
	if len(cand.Ports) != 3 {
		t.Errorf("Ports = %d entries, want 3", len(cand.Ports))
	}
}

func TestCandidateEmptyOSBecomesLearn(t *testing.T) {
	c := NewCandidateList()
	c.Add("r2", "Gi0/1", nil, "", "r1")
	if got := c.Get("r2").OS; got != models.OSLearn {
		t.Errorf("OS = %q, want %q", got, models.OSLearn)
	}
}

func TestCandidateManagementProvenanceSticky(t *testing.T) {
	c := NewCandidateList()
	c.Add("r2", "Gi0/1", map[string]AddrSource{"10.0.0.2": AddrManagement}, models.OSIOS, "r1")
	c.Add("r2", "Gi0/2", map[string]AddrSource{"10.0.0.2": AddrInterface}, models.OSIOS, "r3")

	if src := c.Get("r2").Addrs["10.0.0.2"]; src != AddrManagement {
		t.Errorf("Addrs[10.0.0.2] = %v, want AddrManagement", src)
	}
}

func TestCandidateInterfaceUpgradedToManagement(t *testing.T) {
	c := NewCandidateList()
	c.Add("r2", "Gi0/1", map[string]AddrSource{"10.0.0.2": AddrInterface}, models.OSIOS, "r1")
	c.Add("r2", "Gi0/2", map[string]AddrSource{"10.0.0.2": AddrManagement}, models.OSIOS, "r3")

	if src := c.Get("r2").Addrs["10.0.0.2"]; src != AddrManagement {
		t.Errorf("Addrs[10.0.0.2] = %v, want AddrManagement after upgrade", src)
	}
}

func TestHostsFirstSeenOrder(t *testing.T) {
	c := NewCandidateList()
	c.Add("r9", "e0", nil, models.OSIOS, "r1")
	c.Add("r2", "e0", nil, models.OSIOS, "r1")
	c.Add("r9", "e1", nil, models.OSIOS, "r1")

	got := c.Hosts()
	want := []string{"r9", "r2"}
	if len(got) != len(want) {
		t.Fatalf("Hosts() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Hosts()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConnectionSetDeduplicates(t *testing.T) {
	s := NewConnectionSet()
	s.Add("Gi0/1", "r2", "Gi0/5")
	s.Add("Gi0/1", "r2", "Gi0/5")
	s.Add("Gi0/1", "r3", "Gi0/7")

	eps := s.Endpoints("Gi0/1")
	if len(eps) != 2 {
		t.Fatalf("Endpoints() = %d entries, want 2", len(eps))
	}
	if eps[0].Host != "r2" || eps[1].Host != "r3" {
		t.Errorf("Endpoints() = %v, want r2 then r3", eps)
	}
}

func TestConnectionSetInterfaceOrder(t *testing.T) {
	s := NewConnectionSet()
	s.Add("Gi0/2", "r2", "e0")
	s.Add("Gi0/1", "r3", "e0")
	s.Add("Gi0/2", "r4", "e0")

	got := s.Interfaces()
	want := []string{"Gi0/2", "Gi0/1"}
	if len(got) != len(want) {
		t.Fatalf("Interfaces() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Interfaces()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
