package testutil

import (
	"topodisc/pkg/models"
)

// NewDevice returns a Device with sensible defaults, suitable for test fixtures.
// Override individual fields after creation as needed.
func NewDevice(name string, opts ...func(*models.Device)) *models.Device {
	d := models.NewDevice(name, models.OSIOS)
	d.Credentials["default"] = models.Credential{Username: "admin", Password: "lab"}
	d.AddConnection("default", &models.ConnectionSpec{
		Protocol: models.ProtocolSSH,
		IP:       "192.0.2.10",
	})
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WithOS sets the device operating system.
func WithOS(os models.OS) func(*models.Device) {
	return func(d *models.Device) { d.OS = os }
}

// WithConnection adds a connection spec under the given name.
func WithConnection(name string, spec *models.ConnectionSpec) func(*models.Device) {
	return func(d *models.Device) { d.AddConnection(name, spec) }
}

// WithCredential sets a named credential.
func WithCredential(name string, cred models.Credential) func(*models.Device) {
	return func(d *models.Device) { d.Credentials[name] = cred }
}

// Connected marks the device as having an established session.
func Connected() func(*models.Device) {
	return func(d *models.Device) { d.Connected = true }
}

// Visited marks the device as already queried for neighbor data.
func Visited() func(*models.Device) {
	return func(d *models.Device) { d.Visited = true }
}
