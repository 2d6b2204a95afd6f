// Package discover implements the iterative topology-discovery engine: the
// connection manager, neighbor data collector, adjacency normalizer and the
// device-graph merge loop that together grow a testbed from a seed
// inventory.
package discover

import (
	"fmt"
	"net"
	"strings"
	"time"

	"topodisc/pkg/models"
)

// Options is the explicit, validated configuration for one discovery run.
// All knobs the CLI exposes land here; nothing is injected by reflection.
type Options struct {
	// TestbedFile is the seed inventory path; Output is where the augmented
	// document is written (defaults to TestbedFile).
	TestbedFile string
	Output      string

	// ConfigDiscovery allows enabling CDP/LLDP on devices where it is off.
	// Anything enabled is reverted at the end of the run.
	ConfigDiscovery bool

	// AllInterfaces enumerates the full interface list of known devices
	// instead of only the interfaces seen in discovered connections.
	AllInterfaces bool

	// OnlyLinks stops after a single round and never adds new devices.
	OnlyLinks bool

	// SSHOnly restricts connection attempts to ssh connection specs.
	SSHOnly bool

	// ExcludeNetworks drops neighbor entries whose addresses fall inside
	// any of these CIDR ranges.
	ExcludeNetworks []string

	// ExcludeInterfaces drops connections whose local or remote interface
	// name appears here.
	ExcludeInterfaces []string

	// Alias maps device name to the preferred connection name to try
	// first. A device with an alias is attempted even when its OS is
	// outside the supported set.
	Alias map[string]string

	// Timeout bounds each connection attempt.
	Timeout time.Duration

	// Limit caps simultaneous in-flight device operations per round.
	// Zero means one worker per device.
	Limit int

	// UniversalCred, when set, is given to every newly discovered device in
	// place of the finder's credentials.
	UniversalCred *models.Credential

	// AskCredentials defers passwords to connect time (%ASK{} markers).
	// Mutually exclusive with UniversalCred.
	AskCredentials bool

	// SNMPCommunity enables the supplemental LLDP-MIB management-address
	// probe when non-empty.
	SNMPCommunity string

	// EncodePasswords writes credential passwords in encoded form.
	EncodePasswords bool

	excludeNets  []*net.IPNet
	excludeIntfs map[string]struct{}
}

// Validate parses and checks the options. It must pass before any device
// I/O begins; malformed operator input is fatal at startup.
func (o *Options) Validate() error {
	if o.TestbedFile == "" {
		return fmt.Errorf("options: testbed file is required")
	}
	if o.Output == "" {
		o.Output = o.TestbedFile
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.UniversalCred != nil && o.AskCredentials {
		return fmt.Errorf("options: universal credentials and credential prompting are mutually exclusive")
	}
	if o.UniversalCred != nil && o.UniversalCred.Username == "" {
		return fmt.Errorf("options: universal credentials need a username")
	}

	o.excludeNets = o.excludeNets[:0]
	for _, cidr := range o.ExcludeNetworks {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			return fmt.Errorf("options: exclude network %q: %w", cidr, err)
		}
		o.excludeNets = append(o.excludeNets, ipnet)
	}

	o.excludeIntfs = make(map[string]struct{}, len(o.ExcludeInterfaces))
	for _, name := range o.ExcludeInterfaces {
		if name == "" {
			return fmt.Errorf("options: empty interface name in exclusion list")
		}
		o.excludeIntfs[name] = struct{}{}
	}

	for dev, alias := range o.Alias {
		if dev == "" || alias == "" {
			return fmt.Errorf("options: alias entries need device and connection name, got %q:%q", dev, alias)
		}
	}
	return nil
}

// ExcludedInterface reports whether an interface name is filtered out.
func (o *Options) ExcludedInterface(name string) bool {
	_, ok := o.excludeIntfs[name]
	return ok
}

// ExcludedAddress reports whether an address falls inside an excluded
// network. Unparseable addresses are not excluded.
func (o *Options) ExcludedAddress(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, ipnet := range o.excludeNets {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}

// ParseAliasArg parses the CLI alias syntax "device:conn[,device:conn...]"
// into the Alias map.
func ParseAliasArg(arg string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(arg, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		dev, conn, ok := strings.Cut(pair, ":")
		if !ok || dev == "" || conn == "" {
			return nil, fmt.Errorf("alias %q: want device:connection", pair)
		}
		out[dev] = conn
	}
	return out, nil
}

// ParseLoginArg parses "username password" into a credential.
func ParseLoginArg(arg string) (*models.Credential, error) {
	if arg == "" {
		return nil, nil
	}
	fields := strings.Fields(arg)
	if len(fields) != 2 {
		return nil, fmt.Errorf("login %q: want \"username password\"", arg)
	}
	return &models.Credential{Username: fields[0], Password: fields[1]}, nil
}
