package testbed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"topodisc/internal/graph"
	"topodisc/pkg/models"
)

// WriteOptions controls document serialization.
type WriteOptions struct {
	// EncodePasswords writes every credential password in encoded form.
	EncodePasswords bool
}

// BuildDocument projects the graph into a testbed document. The projection
// is deterministic: the same graph always yields the same document.
func BuildDocument(g *graph.Graph) *models.TestbedDocument {
	doc := models.NewTestbedDocument()

	for _, dev := range g.Devices() {
		entry := &models.DeviceEntry{
			Type: dev.Type,
			OS:   string(dev.OS),
		}
		if len(dev.Credentials) > 0 {
			entry.Credentials = make(map[string]models.Credential, len(dev.Credentials))
			for name, cred := range dev.Credentials {
				entry.Credentials[name] = cred
			}
		}
		if len(dev.Connections) > 0 {
			entry.Connections = make(map[string]*models.ConnectionEntry, len(dev.Connections))
			for _, name := range dev.ConnectionNames() {
				spec := dev.Connections[name]
				entry.Connections[name] = &models.ConnectionEntry{
					Protocol: string(spec.Protocol),
					IP:       spec.IP,
					Port:     spec.Port,
					Proxy:    spec.Proxy,
				}
			}
		}
		doc.Devices[dev.Name] = entry

		if len(dev.Interfaces) == 0 {
			continue
		}
		topo := &models.TopologyEntry{
			Interfaces: make(map[string]*models.InterfaceEntry, len(dev.Interfaces)),
		}
		for name, intf := range dev.Interfaces {
			ie := &models.InterfaceEntry{
				Type: intf.Type,
				IPv4: intf.IPv4,
				IPv6: intf.IPv6,
			}
			if intf.Link != nil {
				ie.Link = intf.Link.Name
			}
			topo.Interfaces[name] = ie
		}
		doc.Topology[dev.Name] = topo
	}

	if len(doc.Topology) == 0 {
		doc.Topology = nil
	}
	return doc
}

// MergeDocuments folds update into base, additively: nothing present in
// base is ever removed, and re-merging the same update is a no-op. A device
// entry already in base is kept exactly as the seed wrote it; only devices
// new to base are copied, and topology gains missing interfaces.
func MergeDocuments(base, update *models.TestbedDocument) *models.TestbedDocument {
	if base == nil {
		return update
	}
	if update == nil {
		return base
	}

	for name, upd := range update.Devices {
		if _, ok := base.Devices[name]; !ok {
			base.Devices[name] = upd
		}
	}

	for name, upd := range update.Topology {
		if base.Topology == nil {
			base.Topology = make(map[string]*models.TopologyEntry)
		}
		cur, ok := base.Topology[name]
		if !ok {
			base.Topology[name] = upd
			continue
		}
		for intfName, intf := range upd.Interfaces {
			if cur.Interfaces == nil {
				cur.Interfaces = make(map[string]*models.InterfaceEntry)
			}
			existing, seen := cur.Interfaces[intfName]
			if !seen {
				cur.Interfaces[intfName] = intf
				continue
			}
			if intf.Type != "" {
				existing.Type = intf.Type
			}
			// An interface already assigned to a link keeps it; links are
			// never reassigned by a merge.
			if existing.Link == "" {
				existing.Link = intf.Link
			}
			if intf.IPv4 != "" {
				existing.IPv4 = intf.IPv4
			}
			if intf.IPv6 != "" {
				existing.IPv6 = intf.IPv6
			}
		}
	}
	return base
}

// Write serializes the document to path. YAML map keys are emitted sorted,
// so repeated runs over an unchanged network produce byte-identical files.
func Write(path string, doc *models.TestbedDocument, opts WriteOptions) error {
	if opts.EncodePasswords {
		EncodePasswords(doc)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal testbed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write testbed %s: %w", path, err)
	}
	return nil
}

// EncodePasswords rewrites every credential password in the document to its
// encoded form. Already-encoded values and ask markers pass through.
func EncodePasswords(doc *models.TestbedDocument) {
	for _, entry := range doc.Devices {
		for name, cred := range entry.Credentials {
			cred.Password = EncodeSecret(cred.Password)
			entry.Credentials[name] = cred
		}
	}
}
