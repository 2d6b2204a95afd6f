// Package session opens management sessions to network devices and exposes
// the neighbor-discovery capability surface the discovery engine consumes.
// The engine only sees the Provider interface; the SSH implementation lives
// alongside it.
package session

import (
	"context"
	"time"

	"topodisc/pkg/models"
)

// CDPNeighbor is one entry from a device's CDP neighbor table.
type CDPNeighbor struct {
	DeviceID        string
	SystemName      string
	LocalInterface  string
	PortID          string
	Platform        string
	SoftwareVersion string

	// ManagementAddresses are addresses the neighbor advertises for
	// management; EntryAddresses are the addresses of the reporting
	// interface itself.
	ManagementAddresses []string
	EntryAddresses      []string
}

// CDPTable is the structured result of a CDP neighbor query.
type CDPTable struct {
	Neighbors []CDPNeighbor
}

// LLDPNeighbor is one neighbor reported on a remote port.
type LLDPNeighbor struct {
	SystemName        string
	SystemDescription string
	ManagementAddress string
}

// LLDPTable is the structured result of an LLDP neighbor query, keyed by
// local interface, then remote port ID.
type LLDPTable struct {
	TotalEntries int
	Interfaces   map[string]map[string][]LLDPNeighbor
}

// ConnectOptions tune a single connection attempt.
type ConnectOptions struct {
	Timeout time.Duration

	// LearnHostname renames the device from the session prompt when the
	// seed inventory used a placeholder name.
	LearnHostname bool
}

// Provider is the per-device session capability surface.
//
// Connect attempts the named connection spec and returns an error on
// failure; IsConnected reports session state afterward. Destroy invalidates
// one spec so it is never retried. The query methods require an established
// session.
type Provider interface {
	Connect(ctx context.Context, via string, opts ConnectOptions) error
	IsConnected() bool
	Destroy(via string)
	Close() error

	GetCDPNeighbors(ctx context.Context) (*CDPTable, error)
	GetLLDPNeighbors(ctx context.Context) (*LLDPTable, error)
	GetInterfaceIPv4(ctx context.Context, name string) (string, error)
	ListInterfaces(ctx context.Context) ([]string, error)

	VerifyCDP(ctx context.Context) bool
	ConfigureCDP(ctx context.Context) error
	UnconfigureCDP(ctx context.Context) error
	VerifyLLDP(ctx context.Context) bool
	ConfigureLLDP(ctx context.Context) error
	UnconfigureLLDP(ctx context.Context) error
}

// Factory builds a Provider for a device. Proxy-chain hops are resolved
// through the supplied lookup so a chain can be dialed hop by hop.
type Factory func(dev *models.Device, lookup DeviceLookup) Provider

// DeviceLookup resolves a device name to its graph entry. Used when dialing
// proxy chains.
type DeviceLookup func(name string) *models.Device
