package session

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"
)

// lldpRemManAddr from the LLDP-MIB remote management address table.
const oidLLDPRemManAddr = ".1.0.8802.1.1.2.1.4.2.1.4"

// SNMPProber walks a device's LLDP-MIB for neighbor management addresses.
// It supplements CLI discovery: addresses it finds are fed into the
// candidate pipeline the same way CDP/LLDP entry addresses are.
type SNMPProber struct {
	community string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewSNMPProber builds a prober using SNMP v2c with the given community.
func NewSNMPProber(community string, timeout time.Duration, logger *zap.Logger) *SNMPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SNMPProber{community: community, timeout: timeout, logger: logger}
}

// NeighborAddresses returns the management addresses the device's LLDP
// neighbors advertise, deduplicated.
func (p *SNMPProber) NeighborAddresses(host string) ([]string, error) {
	target := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		target = h
	}

	sn := &gosnmp.GoSNMP{
		Target:    target,
		Port:      161,
		Community: p.community,
		Version:   gosnmp.Version2c,
		Timeout:   p.timeout,
		Retries:   1,
	}
	if err := sn.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s: %w", target, err)
	}
	defer sn.Conn.Close()

	seen := make(map[string]struct{})
	var addrs []string
	err := sn.BulkWalk(oidLLDPRemManAddr, func(pdu gosnmp.SnmpPDU) error {
		// The address is usually carried in the OID index tail rather than
		// the value; decode both forms.
		if ip := decodeMgmtAddr(pdu); ip != "" {
			if _, dup := seen[ip]; !dup {
				seen[ip] = struct{}{}
				addrs = append(addrs, ip)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snmp walk %s: %w", target, err)
	}

	p.logger.Debug("snmp lldp management addresses",
		zap.String("device", target),
		zap.Int("count", len(addrs)))
	return addrs, nil
}

// decodeMgmtAddr extracts an IPv4/IPv6 address from a lldpRemManAddr PDU,
// handling string, binary, and OID-index encodings.
func decodeMgmtAddr(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case string:
		if ip := net.ParseIP(v); ip != nil && !ip.IsUnspecified() {
			return ip.String()
		}
		return decodeBinaryIP([]byte(v))
	case []byte:
		if ip := net.ParseIP(string(v)); ip != nil && !ip.IsUnspecified() {
			return ip.String()
		}
		return decodeBinaryIP(v)
	}
	// Fall back to the dotted address at the end of the OID index.
	return addrFromOIDIndex(pdu.Name)
}

func decodeBinaryIP(b []byte) string {
	switch len(b) {
	case 4:
		ip := net.IPv4(b[0], b[1], b[2], b[3])
		if !ip.IsUnspecified() {
			return ip.String()
		}
	case 16:
		ip := net.IP(b)
		if !ip.IsUnspecified() {
			return ip.String()
		}
	}
	return ""
}

// addrFromOIDIndex pulls a trailing IPv4 address out of an instance OID,
// e.g. ...1.4.1.4.10.0.0.2 ends with 10.0.0.2.
func addrFromOIDIndex(oid string) string {
	parts := strings.Split(strings.TrimPrefix(oid, "."), ".")
	if len(parts) < 4 {
		return ""
	}
	tail := strings.Join(parts[len(parts)-4:], ".")
	if ip := net.ParseIP(tail); ip != nil && !ip.IsUnspecified() && ip.To4() != nil {
		return tail
	}
	return ""
}
