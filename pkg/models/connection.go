package models

import "fmt"

// Protocol is the transport used by a connection spec.
type Protocol string

const (
	ProtocolSSH    Protocol = "ssh"
	ProtocolTelnet Protocol = "telnet"
)

// ProxyHop is one intermediate step on the management path to a device:
// the device to hop through and the command executed there to reach the
// next hop.
type ProxyHop struct {
	Device  string `yaml:"device"`
	Command string `yaml:"command"`
}

// ProxyChain is the ordered list of hops needed to reach a device that has
// no direct management path. A nil or empty chain means direct access.
// Chains are always flat: extending an already-proxied path appends one hop,
// it never nests chains.
type ProxyChain []ProxyHop

// Direct reports whether the chain represents direct (unproxied) access.
func (p ProxyChain) Direct() bool { return len(p) == 0 }

// Extend returns a copy of the chain with one more hop appended.
func (p ProxyChain) Extend(hop ProxyHop) ProxyChain {
	out := make(ProxyChain, len(p), len(p)+1)
	copy(out, p)
	return append(out, hop)
}

// ConnectionSpec describes one way to open a session to a device.
// Identity is the (device, connection-name) pair; the name is the map key
// on Device.Connections.
type ConnectionSpec struct {
	Protocol Protocol
	IP       string
	Port     int
	Proxy    ProxyChain

	// destroyed marks a spec that failed a connection attempt; destroyed
	// specs are never retried in this or future rounds.
	destroyed bool
}

// Destroy invalidates the spec so it is not retried.
func (c *ConnectionSpec) Destroy() { c.destroyed = true }

// Destroyed reports whether the spec has been invalidated.
func (c *ConnectionSpec) Destroyed() bool { return c.destroyed }

// Addr returns the dialable host:port for the spec, defaulting the port
// from the protocol.
func (c *ConnectionSpec) Addr() string {
	port := c.Port
	if port == 0 {
		switch c.Protocol {
		case ProtocolTelnet:
			port = 23
		default:
			port = 22
		}
	}
	return fmt.Sprintf("%s:%d", c.IP, port)
}

// SSHHopCommand builds the command a proxy hop runs to reach the given
// address from an intermediate device.
func SSHHopCommand(username, ip string) string {
	if username == "" {
		return fmt.Sprintf("ssh %s", ip)
	}
	return fmt.Sprintf("ssh -l %s %s", username, ip)
}
