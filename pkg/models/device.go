package models

// OS identifies a device network operating system.
type OS string

const (
	OSIOS   OS = "ios"
	OSIOSXE OS = "iosxe"
	OSIOSXR OS = "iosxr"
	OSNXOS  OS = "nxos"

	// OSLearn marks a device whose OS could not be classified from
	// neighbor-protocol data. The device is still connectable; the session
	// layer learns the real OS on first connect. This is the single sentinel
	// used everywhere an OS is unknown; the field is never left empty.
	OSLearn OS = "learn"
)

// SupportedOS lists the operating systems the discovery engine knows how to
// query for CDP/LLDP neighbor data.
var SupportedOS = []OS{OSNXOS, OSIOSXR, OSIOSXE, OSIOS}

// IsSupported reports whether the OS is in the supported set.
func (o OS) IsSupported() bool {
	for _, s := range SupportedOS {
		if o == s {
			return true
		}
	}
	return false
}

// Credential is one named credential set (username/password pair).
type Credential struct {
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// Device is a node in the discovery graph. Identity is the name, unique
// within a graph. Devices are merged when rediscovered, never replaced or
// deleted.
type Device struct {
	Name        string
	Type        string
	OS          OS
	Credentials map[string]Credential
	Connections map[string]*ConnectionSpec

	// connOrder preserves connection declaration order; connection attempts
	// iterate specs in this order.
	connOrder []string

	// Interfaces are created lazily the first time a connection or neighbor
	// record references them, keyed by interface name.
	Interfaces map[string]*Interface

	// Connected is set by the connection manager once a session is
	// established. Visited is set once neighbor collection has been
	// attempted, success or not, so later rounds never re-query.
	Connected bool
	Visited   bool
}

// NewDevice creates a device with empty attribute maps.
func NewDevice(name string, os OS) *Device {
	if os == "" {
		os = OSLearn
	}
	return &Device{
		Name:        name,
		Type:        "device",
		OS:          os,
		Credentials: make(map[string]Credential),
		Connections: make(map[string]*ConnectionSpec),
		Interfaces:  make(map[string]*Interface),
	}
}

// AddConnection registers a connection spec under a name, preserving
// declaration order. Re-adding an existing name replaces the spec in place.
func (d *Device) AddConnection(name string, spec *ConnectionSpec) {
	if _, ok := d.Connections[name]; !ok {
		d.connOrder = append(d.connOrder, name)
	}
	d.Connections[name] = spec
}

// ConnectionNames returns connection names in declaration order.
func (d *Device) ConnectionNames() []string {
	out := make([]string, len(d.connOrder))
	copy(out, d.connOrder)
	return out
}

// Interface is one port on a device. Identity is the (device, name) pair.
type Interface struct {
	Device *Device
	Name   string

	// Type is inferred from the alphabetic lead of the name, e.g.
	// "Ethernet0/3" -> "ethernet".
	Type string

	IPv4 string
	IPv6 string

	// Link is the adjacency this interface belongs to, if any. An interface
	// belongs to at most one link.
	Link *Link
}

// Link is an undirected n-ary adjacency: the interfaces sharing one
// physical or logical segment. Identity is a synthetic generated name.
type Link struct {
	Name       string
	Interfaces []*Interface
}

// Has reports whether the interface is already a member of the link.
func (l *Link) Has(intf *Interface) bool {
	for _, member := range l.Interfaces {
		if member == intf {
			return true
		}
	}
	return false
}

// Connect appends the interface to the link and sets its back-reference.
// No-op when the interface is already a member.
func (l *Link) Connect(intf *Interface) {
	if l.Has(intf) {
		return
	}
	l.Interfaces = append(l.Interfaces, intf)
	intf.Link = l
}
