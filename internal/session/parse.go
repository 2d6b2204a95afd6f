package session

import (
	"net"
	"regexp"
	"strings"
)

// The show-command parsers below cover the output shapes shared by the
// supported OS family. They extract only the fields the discovery engine
// consumes; everything else in the output is ignored.

var (
	cdpBlockSep     = regexp.MustCompile(`(?m)^-{5,}\s*$`)
	ipAddressLine   = regexp.MustCompile(`(?i)^\s*IPv?4?\s*address:\s*(\S+)`)
	lldpMgmtIPLine  = regexp.MustCompile(`(?i)^\s*IP(?:v4)?:\s*(\S+)`)
	internetAddrRe  = regexp.MustCompile(`(?i)Internet address is\s+(\S+)`)
	interfacePortRe = regexp.MustCompile(`(?i)^Interface:\s*([^,]+),\s*Port ID \(outgoing port\):\s*(.+)$`)
)

// parseCDPNeighbors parses "show cdp neighbors detail" output.
func parseCDPNeighbors(out string) *CDPTable {
	table := &CDPTable{}
	for _, block := range cdpBlockSep.Split(out, -1) {
		n := parseCDPBlock(block)
		if n.DeviceID == "" && n.SystemName == "" {
			continue
		}
		table.Neighbors = append(table.Neighbors, n)
	}
	return table
}

func parseCDPBlock(block string) CDPNeighbor {
	var n CDPNeighbor
	lines := strings.Split(block, "\n")

	// section tracks which address list "IP address:" lines belong to.
	section := ""
	inVersion := false
	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "Device ID:"):
			n.DeviceID = strings.TrimSpace(strings.TrimPrefix(trimmed, "Device ID:"))
			section = ""
		case strings.HasPrefix(trimmed, "System Name:"):
			n.SystemName = strings.TrimSpace(strings.TrimPrefix(trimmed, "System Name:"))
			section = ""
		case strings.HasPrefix(trimmed, "Entry address(es):"):
			section = "entry"
		case strings.HasPrefix(trimmed, "Management address(es):"):
			section = "mgmt"
		case strings.HasPrefix(trimmed, "Platform:"):
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "Platform:"))
			if i := strings.Index(rest, ","); i >= 0 {
				rest = rest[:i]
			}
			n.Platform = strings.TrimSpace(rest)
			section = ""
		case interfacePortRe.MatchString(trimmed):
			m := interfacePortRe.FindStringSubmatch(trimmed)
			n.LocalInterface = strings.TrimSpace(m[1])
			n.PortID = strings.TrimSpace(m[2])
			section = ""
		case strings.HasPrefix(trimmed, "Version"):
			inVersion = true
			section = ""
		case inVersion && trimmed != "":
			if n.SoftwareVersion == "" {
				n.SoftwareVersion = trimmed
			}
			inVersion = false
		default:
			if m := ipAddressLine.FindStringSubmatch(line); m != nil {
				switch section {
				case "entry":
					n.EntryAddresses = append(n.EntryAddresses, m[1])
				case "mgmt":
					n.ManagementAddresses = append(n.ManagementAddresses, m[1])
				}
			}
		}
	}
	return n
}

// parseLLDPNeighbors parses "show lldp neighbors detail" output.
func parseLLDPNeighbors(out string) *LLDPTable {
	table := &LLDPTable{Interfaces: make(map[string]map[string][]LLDPNeighbor)}
	for _, block := range cdpBlockSep.Split(out, -1) {
		localIntf, portID, n := parseLLDPBlock(block)
		if localIntf == "" || portID == "" {
			continue
		}
		ports, ok := table.Interfaces[localIntf]
		if !ok {
			ports = make(map[string][]LLDPNeighbor)
			table.Interfaces[localIntf] = ports
		}
		ports[portID] = append(ports[portID], n)
		table.TotalEntries++
	}
	return table
}

func parseLLDPBlock(block string) (localIntf, portID string, n LLDPNeighbor) {
	lines := strings.Split(block, "\n")
	inDescription := false
	inMgmt := false
	for _, raw := range lines {
		trimmed := strings.TrimSpace(strings.TrimRight(raw, "\r"))

		switch {
		case strings.HasPrefix(trimmed, "Local Intf:"):
			localIntf = strings.TrimSpace(strings.TrimPrefix(trimmed, "Local Intf:"))
		case strings.HasPrefix(trimmed, "Port id:"):
			portID = strings.TrimSpace(strings.TrimPrefix(trimmed, "Port id:"))
		case strings.HasPrefix(trimmed, "System Name:"):
			n.SystemName = strings.TrimSpace(strings.TrimPrefix(trimmed, "System Name:"))
		case strings.HasPrefix(trimmed, "System Description:"):
			inDescription = true
		case inDescription && trimmed != "":
			n.SystemDescription = trimmed
			inDescription = false
		case strings.HasPrefix(trimmed, "Management Addresses:"):
			inMgmt = true
		case inMgmt:
			if m := lldpMgmtIPLine.FindStringSubmatch(trimmed); m != nil {
				if n.ManagementAddress == "" {
					n.ManagementAddress = m[1]
				}
			} else if trimmed == "" {
				inMgmt = false
			}
		}
	}
	return localIntf, portID, n
}

// parseInterfaceIPv4 extracts "address/prefix" from "show ip interface"
// output for a single interface.
func parseInterfaceIPv4(out string) string {
	if m := internetAddrRe.FindStringSubmatch(out); m != nil {
		return m[1]
	}
	return ""
}

// parseInterfaceDescription lists interface names from
// "show interfaces description" output.
func parseInterfaceDescription(out string) []string {
	var names []string
	for i, raw := range strings.Split(out, "\n") {
		line := strings.TrimRight(raw, "\r")
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		// Header row.
		if i == 0 && strings.EqualFold(fields[0], "Interface") {
			continue
		}
		if looksLikeInterface(fields[0]) {
			names = append(names, fields[0])
		}
	}
	return names
}

// looksLikeInterface filters out prompt echoes and separators: an interface
// name starts with a letter and contains at least one digit.
func looksLikeInterface(s string) bool {
	if s == "" || !isAlpha(rune(s[0])) {
		return false
	}
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// interfaceIPv4FromBrief finds the address column for an interface in
// "show ip interface brief" output. Used as a fallback when the per
// interface show command yields nothing.
func interfaceIPv4FromBrief(out, name string) string {
	for _, raw := range strings.Split(out, "\n") {
		fields := strings.Fields(strings.TrimRight(raw, "\r"))
		if len(fields) < 2 || fields[0] != name {
			continue
		}
		if net.ParseIP(fields[1]) != nil {
			return fields[1]
		}
	}
	return ""
}
