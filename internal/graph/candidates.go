package graph

import "topodisc/pkg/models"

// AddrSource records how a candidate address was reported. Management
// addresses are assumed directly dialable; interface-local addresses may
// only be reachable by tunneling through the discovering device.
type AddrSource int

const (
	AddrManagement AddrSource = iota
	AddrInterface
)

// Candidate accumulates everything learned about a remote device from
// neighbor records before it is merged into the graph: the ports seen, the
// addresses it was reported under (with provenance), its classified OS and
// the device that first reported it.
type Candidate struct {
	Host   string
	Ports  map[string]struct{}
	Addrs  map[string]AddrSource
	OS     models.OS
	Finder string
}

// CandidateList collects candidate devices across one discovery round,
// merging repeated sightings of the same host.
type CandidateList struct {
	byHost map[string]*Candidate
	order  []string
}

// NewCandidateList returns an empty candidate list.
func NewCandidateList() *CandidateList {
	return &CandidateList{byHost: make(map[string]*Candidate)}
}

// Add records a sighting of host. New hosts get a fresh entry; repeated
// sightings union the port and address sets. The OS is only set when
// previously unclassified: the first non-sentinel classification wins and
// later ones never override it. An address reported as management anywhere
// stays management.
func (c *CandidateList) Add(host, port string, addrs map[string]AddrSource, os models.OS, finder string) {
	if os == "" {
		os = models.OSLearn
	}
	cand, ok := c.byHost[host]
	if !ok {
		cand = &Candidate{
			Host:   host,
			Ports:  map[string]struct{}{port: {}},
			Addrs:  make(map[string]AddrSource, len(addrs)),
			OS:     os,
			Finder: finder,
		}
		c.byHost[host] = cand
		c.order = append(c.order, host)
	} else {
		if cand.OS == models.OSLearn && os != models.OSLearn {
			cand.OS = os
		}
		cand.Ports[port] = struct{}{}
	}
	for a, src := range addrs {
		if existing, seen := cand.Addrs[a]; seen && existing == AddrManagement {
			continue
		}
		cand.Addrs[a] = src
	}
}

// Get returns the candidate for host, or nil.
func (c *CandidateList) Get(host string) *Candidate { return c.byHost[host] }

// Hosts returns candidate hosts in first-seen order.
func (c *CandidateList) Hosts() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of distinct candidate hosts.
func (c *CandidateList) Len() int { return len(c.byHost) }

// Endpoint names one remote end of a discovered connection.
type Endpoint struct {
	Host string
	Port string
}

// ConnectionSet is one device's discovered adjacency for a round: local
// interface name to the remote endpoints seen on it. Identical
// (interface, host, port) tuples are recorded once.
type ConnectionSet struct {
	byIntf map[string][]Endpoint
	order  []string
}

// NewConnectionSet returns an empty connection set.
func NewConnectionSet() *ConnectionSet {
	return &ConnectionSet{byIntf: make(map[string][]Endpoint)}
}

// Add records a connection from the local interface to the remote endpoint.
// Duplicate tuples for the same interface are silently ignored.
func (s *ConnectionSet) Add(intf, host, port string) {
	entries, ok := s.byIntf[intf]
	if !ok {
		s.byIntf[intf] = []Endpoint{{Host: host, Port: port}}
		s.order = append(s.order, intf)
		return
	}
	for _, e := range entries {
		if e.Host == host && e.Port == port {
			return
		}
	}
	s.byIntf[intf] = append(entries, Endpoint{Host: host, Port: port})
}

// Interfaces returns the local interface names in first-seen order.
func (s *ConnectionSet) Interfaces() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Endpoints returns the remote endpoints recorded for an interface.
func (s *ConnectionSet) Endpoints(intf string) []Endpoint { return s.byIntf[intf] }

// Len returns the number of local interfaces with recorded connections.
func (s *ConnectionSet) Len() int { return len(s.byIntf) }
