package models

// TestbedDocument is the persisted inventory representation: the YAML
// document read at start, augmented by discovery, and rewritten at the end.
type TestbedDocument struct {
	Devices  map[string]*DeviceEntry   `yaml:"devices"`
	Topology map[string]*TopologyEntry `yaml:"topology,omitempty"`
}

// DeviceEntry is the serialized form of a device in the document.
type DeviceEntry struct {
	Type        string                      `yaml:"type"`
	OS          string                      `yaml:"os"`
	Credentials map[string]Credential       `yaml:"credentials,omitempty"`
	Connections map[string]*ConnectionEntry `yaml:"connections,omitempty"`
}

// ConnectionEntry is the serialized form of a connection spec. Proxy chains
// are flattened into the plain proxy field.
type ConnectionEntry struct {
	Protocol string     `yaml:"protocol"`
	IP       string     `yaml:"ip"`
	Port     int        `yaml:"port,omitempty"`
	Proxy    ProxyChain `yaml:"proxy,omitempty"`
}

// TopologyEntry holds the interface section for one device.
type TopologyEntry struct {
	Interfaces map[string]*InterfaceEntry `yaml:"interfaces"`
}

// InterfaceEntry is the serialized form of one interface.
type InterfaceEntry struct {
	Type string `yaml:"type"`
	Link string `yaml:"link,omitempty"`
	IPv4 string `yaml:"ipv4,omitempty"`
	IPv6 string `yaml:"ipv6,omitempty"`
}

// NewTestbedDocument returns an empty document with allocated sections.
func NewTestbedDocument() *TestbedDocument {
	return &TestbedDocument{
		Devices:  make(map[string]*DeviceEntry),
		Topology: make(map[string]*TopologyEntry),
	}
}
