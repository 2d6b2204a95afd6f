// Package graph owns the in-memory device graph for one discovery run:
// devices, their interfaces, and the links joining them. The graph is seeded
// from an existing testbed document and mutated only by the single
// orchestrating goroutine between parallel rounds.
package graph

import (
	"fmt"
	"strings"
	"unicode"

	"topodisc/pkg/models"
)

// Graph aggregates all devices, interfaces and links for a discovery run.
type Graph struct {
	devices map[string]*models.Device

	// order preserves device insertion order so iteration and link naming
	// stay deterministic across runs.
	order []string

	links    []*models.Link
	linkName map[string]*models.Link
	linkSeq  int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		devices:  make(map[string]*models.Device),
		linkName: make(map[string]*models.Link),
	}
}

// Device returns the named device, or nil.
func (g *Graph) Device(name string) *models.Device {
	return g.devices[name]
}

// Has reports whether the named device exists in the graph.
func (g *Graph) Has(name string) bool {
	_, ok := g.devices[name]
	return ok
}

// Add inserts a device into the graph. Adding an existing name is an error;
// devices are merged through the discovery engine, never replaced.
func (g *Graph) Add(dev *models.Device) error {
	if dev == nil || dev.Name == "" {
		return fmt.Errorf("add device: empty name")
	}
	if _, ok := g.devices[dev.Name]; ok {
		return fmt.Errorf("add device %q: already present", dev.Name)
	}
	g.devices[dev.Name] = dev
	g.order = append(g.order, dev.Name)
	return nil
}

// Names returns device names in insertion order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Devices returns the devices in insertion order.
func (g *Graph) Devices() []*models.Device {
	out := make([]*models.Device, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.devices[name])
	}
	return out
}

// Len returns the total device count.
func (g *Graph) Len() int { return len(g.devices) }

// VisitedCount returns how many devices have had neighbor collection
// attempted. The discovery loop terminates once this reaches Len.
func (g *Graph) VisitedCount() int {
	n := 0
	for _, dev := range g.devices {
		if dev.Visited {
			n++
		}
	}
	return n
}

// Links returns all links created so far.
func (g *Graph) Links() []*models.Link { return g.links }

// NewLink creates an empty link with the next free synthetic name and
// registers it with the graph. Synthetic names skip over names already
// taken by seeded links.
func (g *Graph) NewLink() *models.Link {
	var name string
	for {
		name = fmt.Sprintf("Link_%d", g.linkSeq)
		g.linkSeq++
		if _, taken := g.linkName[name]; !taken {
			break
		}
	}
	return g.Link(name)
}

// Link returns the named link, creating and registering it when absent.
// Used when seeding the graph from a document that already names its links.
func (g *Graph) Link(name string) *models.Link {
	if link, ok := g.linkName[name]; ok {
		return link
	}
	link := &models.Link{Name: name}
	g.links = append(g.links, link)
	g.linkName[name] = link
	return link
}

// Interface resolves (device, name) to an interface, creating the device's
// interface lazily with a type inferred from the name. The device must
// already exist.
func (g *Graph) Interface(device, name string) (*models.Interface, error) {
	dev, ok := g.devices[device]
	if !ok {
		return nil, fmt.Errorf("interface %s/%s: unknown device", device, name)
	}
	if intf, ok := dev.Interfaces[name]; ok {
		return intf, nil
	}
	intf := &models.Interface{
		Device: dev,
		Name:   name,
		Type:   InterfaceType(name),
	}
	dev.Interfaces[name] = intf
	return intf, nil
}

// InterfaceType infers an interface type from its name: the part of the
// name before the first digit, lowercased. "Ethernet0/3" becomes
// "ethernet". Names without digits are lowercased whole.
func InterfaceType(name string) string {
	for i, r := range name {
		if unicode.IsDigit(r) {
			return strings.ToLower(name[:i])
		}
	}
	return strings.ToLower(name)
}
