package testbed

import (
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"topodisc/internal/graph"
	"topodisc/pkg/models"
)

// LoadResult is everything a run needs from the seed document: the graph to
// grow, the document itself for the final additive merge, and the harvested
// credential pool inherited by discovered devices. Document keeps the seed's
// passwords exactly as read; only the graph and pool carry plaintext.
type LoadResult struct {
	Graph          *graph.Graph
	Document       *models.TestbedDocument
	CredentialPool map[string]models.Credential

	// SecretsEncoded reports whether any seed password was stored encoded.
	// Writers use it to keep newly added credentials encoded as well.
	SecretsEncoded bool
}

// Load reads and parses the seed testbed file.
func Load(path string, logger *zap.Logger) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read testbed %s: %w", path, err)
	}
	result, err := Parse(data, logger)
	if err != nil {
		return nil, fmt.Errorf("parse testbed %s: %w", path, err)
	}
	return result, nil
}

// Parse validates the document and seeds a graph from it. Every password is
// decoded on load; encoded values that fail to decode are fatal.
func Parse(data []byte, logger *zap.Logger) (*LoadResult, error) {
	doc := models.NewTestbedDocument()
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if len(doc.Devices) == 0 {
		return nil, fmt.Errorf("document has no devices")
	}

	g := graph.New()
	for _, name := range sortedDeviceNames(doc) {
		entry := doc.Devices[name]
		dev, err := deviceFromEntry(name, entry)
		if err != nil {
			return nil, err
		}
		if err := g.Add(dev); err != nil {
			return nil, err
		}
	}

	if err := validateProxies(doc, logger); err != nil {
		return nil, err
	}
	if err := seedTopology(g, doc); err != nil {
		return nil, err
	}

	return &LoadResult{
		Graph:          g,
		Document:       doc,
		CredentialPool: harvestCredentials(g),
		SecretsEncoded: hasEncodedSecrets(doc),
	}, nil
}

func hasEncodedSecrets(doc *models.TestbedDocument) bool {
	for _, entry := range doc.Devices {
		if entry == nil {
			continue
		}
		for _, cred := range entry.Credentials {
			if IsEncoded(cred.Password) {
				return true
			}
		}
	}
	return false
}

func deviceFromEntry(name string, entry *models.DeviceEntry) (*models.Device, error) {
	if entry == nil {
		return nil, fmt.Errorf("device %s: empty entry", name)
	}
	dev := models.NewDevice(name, models.OS(entry.OS))
	if entry.Type != "" {
		dev.Type = entry.Type
	}

	// Passwords are decoded into the graph device only; the document keeps
	// whatever form the seed used so projecting it back is lossless.
	for credName, cred := range entry.Credentials {
		plain, err := DecodeSecret(cred.Password)
		if err != nil {
			return nil, fmt.Errorf("device %s credential %s: %w", name, credName, err)
		}
		cred.Password = plain
		dev.Credentials[credName] = cred
	}

	for _, connName := range connectionOrder(entry.Connections) {
		conn := entry.Connections[connName]
		if conn == nil {
			return nil, fmt.Errorf("device %s connection %s: empty entry", name, connName)
		}
		proto := models.Protocol(conn.Protocol)
		if proto == "" {
			proto = models.ProtocolSSH
		}
		if conn.IP == "" {
			return nil, fmt.Errorf("device %s connection %s: ip is required", name, connName)
		}
		dev.AddConnection(connName, &models.ConnectionSpec{
			Protocol: proto,
			IP:       conn.IP,
			Port:     conn.Port,
			Proxy:    conn.Proxy,
		})
	}
	return dev, nil
}

// validateProxies checks that every proxy hop names a device present in the
// document. A chain through an unknown device can never be dialed.
func validateProxies(doc *models.TestbedDocument, logger *zap.Logger) error {
	for _, name := range sortedDeviceNames(doc) {
		for connName, conn := range doc.Devices[name].Connections {
			if conn == nil {
				continue
			}
			for _, hop := range conn.Proxy {
				if _, ok := doc.Devices[hop.Device]; !ok {
					return fmt.Errorf("device %s connection %s: proxy hop through unknown device %q",
						name, connName, hop.Device)
				}
			}
			if len(conn.Proxy) > 0 {
				logger.Debug("seed connection is proxied",
					zap.String("device", name),
					zap.String("connection", connName),
					zap.Int("hops", len(conn.Proxy)))
			}
		}
	}
	return nil
}

// seedTopology replays the document's topology section onto the graph:
// interfaces with their recorded attributes, joined by their named links.
func seedTopology(g *graph.Graph, doc *models.TestbedDocument) error {
	names := make([]string, 0, len(doc.Topology))
	for name := range doc.Topology {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, device := range names {
		topo := doc.Topology[device]
		if topo == nil {
			continue
		}
		if !g.Has(device) {
			return fmt.Errorf("topology references unknown device %q", device)
		}

		intfNames := make([]string, 0, len(topo.Interfaces))
		for name := range topo.Interfaces {
			intfNames = append(intfNames, name)
		}
		sort.Strings(intfNames)

		for _, intfName := range intfNames {
			entry := topo.Interfaces[intfName]
			intf, err := g.Interface(device, intfName)
			if err != nil {
				return err
			}
			if entry == nil {
				continue
			}
			if entry.Type != "" {
				intf.Type = entry.Type
			}
			intf.IPv4 = entry.IPv4
			intf.IPv6 = entry.IPv6
			if entry.Link != "" {
				g.Link(entry.Link).Connect(intf)
			}
		}
	}
	return nil
}

// harvestCredentials folds every device's decoded credentials into one pool.
// A name reused with a different username/password gets a numeric suffix so
// no credential observed in the seed is lost.
func harvestCredentials(g *graph.Graph) map[string]models.Credential {
	pool := make(map[string]models.Credential)
	for _, dev := range g.Devices() {
		credNames := make([]string, 0, len(dev.Credentials))
		for name := range dev.Credentials {
			credNames = append(credNames, name)
		}
		sort.Strings(credNames)

		for _, name := range credNames {
			cred := dev.Credentials[name]
			poolName := name
			for i := 2; ; i++ {
				existing, taken := pool[poolName]
				if !taken {
					pool[poolName] = cred
					break
				}
				if existing == cred {
					break
				}
				poolName = fmt.Sprintf("%s%d", name, i)
			}
		}
	}
	return pool
}

// connectionOrder returns connection names with "default" first and the
// rest alphabetical, so connection attempts try the primary path first.
func connectionOrder(conns map[string]*models.ConnectionEntry) []string {
	var rest []string
	hasDefault := false
	for name := range conns {
		if name == "default" {
			hasDefault = true
			continue
		}
		rest = append(rest, name)
	}
	sort.Strings(rest)
	if hasDefault {
		return append([]string{"default"}, rest...)
	}
	return rest
}

func sortedDeviceNames(doc *models.TestbedDocument) []string {
	out := make([]string, 0, len(doc.Devices))
	for name := range doc.Devices {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
