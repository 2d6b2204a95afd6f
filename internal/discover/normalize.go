package discover

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"topodisc/internal/graph"
	"topodisc/internal/session"
	"topodisc/pkg/models"
)

// hostnameRe keeps the leading hyphen/word run of a reported system name,
// stripping any trailing domain suffix ("r2.lab.example.com" -> "r2").
var hostnameRe = regexp.MustCompile(`[-\w]+`)

// StripDomain reduces a neighbor-reported hostname to its bare device name.
func StripDomain(host string) string {
	if m := hostnameRe.FindString(host); m != "" {
		return m
	}
	return host
}

// ClassifyOS maps the software-version/platform strings of a neighbor entry
// onto the supported OS set. Unmatched text yields the learn-on-connect
// sentinel, never an error.
func ClassifyOS(system, platform string) models.OS {
	combined := system + " " + platform
	switch {
	case strings.Contains(combined, "IOS") && strings.Contains(combined, "XE"):
		return models.OSIOSXE
	case strings.Contains(combined, "IOS") && strings.Contains(combined, "XR"):
		return models.OSIOSXR
	case strings.Contains(combined, "IOS"):
		return models.OSIOS
	case strings.Contains(combined, "NX-OS"):
		return models.OSNXOS
	}
	return models.OSLearn
}

// Normalizer turns one device's raw CDP/LLDP record into the canonical
// connection model and contributes newly seen remote devices to the shared
// candidate list.
type Normalizer struct {
	graph  *graph.Graph
	opts   *Options
	logger *zap.Logger
}

// NewNormalizer builds a normalizer bound to the run's graph and options.
func NewNormalizer(g *graph.Graph, opts *Options, logger *zap.Logger) *Normalizer {
	return &Normalizer{graph: g, opts: opts, logger: logger}
}

// Normalize processes the record collected on device and returns its
// connection set, recording candidates into cands as a side effect.
func (n *Normalizer) Normalize(device string, rec Record, cands *graph.CandidateList) *graph.ConnectionSet {
	conns := graph.NewConnectionSet()
	if rec.CDP != nil {
		n.normalizeCDP(device, rec.CDP, cands, conns)
	}
	if rec.LLDP != nil && rec.LLDP.TotalEntries > 0 {
		n.normalizeLLDP(device, rec.LLDP, cands, conns)
	}
	return conns
}

func (n *Normalizer) normalizeCDP(device string, table *session.CDPTable, cands *graph.CandidateList, conns *graph.ConnectionSet) {
	for _, neighbor := range table.Neighbors {
		host := neighbor.SystemName
		if host == "" {
			host = neighbor.DeviceID
		}
		host = StripDomain(host)
		if host == "" {
			continue
		}

		if n.opts.OnlyLinks && !n.graph.Has(host) {
			continue
		}
		if n.opts.ExcludedInterface(neighbor.LocalInterface) || n.opts.ExcludedInterface(neighbor.PortID) {
			n.logger.Info("connection interface in exclusion list, skipping",
				zap.String("device", device),
				zap.String("interface", neighbor.LocalInterface),
				zap.String("remote", neighbor.PortID))
			continue
		}

		// Two address sets: an address reported both per-interface and as a
		// management address is treated as management only.
		addrs := make(map[string]graph.AddrSource)
		for _, a := range neighbor.EntryAddresses {
			addrs[a] = graph.AddrInterface
		}
		for _, a := range neighbor.ManagementAddresses {
			addrs[a] = graph.AddrManagement
		}

		if n.anyExcluded(addrs) {
			n.logger.Info("neighbor address in excluded network, skipping",
				zap.String("device", device), zap.String("neighbor", host))
			continue
		}

		os := ClassifyOS(neighbor.SoftwareVersion, neighbor.Platform)
		cands.Add(host, neighbor.PortID, addrs, os, device)
		conns.Add(neighbor.LocalInterface, host, neighbor.PortID)
	}
}

func (n *Normalizer) normalizeLLDP(device string, table *session.LLDPTable, cands *graph.CandidateList, conns *graph.ConnectionSet) {
	for localIntf, ports := range table.Interfaces {
		for portID, neighbors := range ports {
			if len(neighbors) == 0 {
				continue
			}
			neighbor := neighbors[0]

			host := StripDomain(neighbor.SystemName)
			if host == "" {
				continue
			}
			if n.opts.OnlyLinks && !n.graph.Has(host) {
				continue
			}
			if n.opts.ExcludedInterface(localIntf) || n.opts.ExcludedInterface(portID) {
				n.logger.Info("connection interface in exclusion list, skipping",
					zap.String("device", device),
					zap.String("interface", localIntf),
					zap.String("remote", portID))
				continue
			}

			addrs := make(map[string]graph.AddrSource)
			if neighbor.ManagementAddress != "" {
				addrs[neighbor.ManagementAddress] = graph.AddrManagement
			}
			if n.anyExcluded(addrs) {
				n.logger.Info("neighbor address in excluded network, skipping",
					zap.String("device", device), zap.String("neighbor", host))
				continue
			}

			os := ClassifyOS(neighbor.SystemDescription, "")
			cands.Add(host, portID, addrs, os, device)
			conns.Add(localIntf, host, portID)
		}
	}
}

func (n *Normalizer) anyExcluded(addrs map[string]graph.AddrSource) bool {
	for a := range addrs {
		if n.opts.ExcludedAddress(a) {
			return true
		}
	}
	return false
}
