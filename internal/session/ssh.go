package session

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"topodisc/pkg/models"
)

// Compile-time interface guard.
var _ Provider = (*SSHProvider)(nil)

// SSHProvider implements Provider over an SSH CLI session. Proxy chains are
// dialed hop by hop: each intermediate device carries a TCP channel to the
// next, with the final channel reaching the target itself.
type SSHProvider struct {
	dev    *models.Device
	lookup DeviceLookup
	logger *zap.Logger

	mu     sync.Mutex
	client *ssh.Client
	// hops holds intermediate clients so they can be closed in reverse
	// order when the session ends.
	hops      []*ssh.Client
	connected bool
}

// NewSSHProvider returns a Factory-compatible constructor.
func NewSSHProvider(logger *zap.Logger) Factory {
	return func(dev *models.Device, lookup DeviceLookup) Provider {
		return &SSHProvider{dev: dev, lookup: lookup, logger: logger}
	}
}

func (p *SSHProvider) Connect(ctx context.Context, via string, opts ConnectOptions) error {
	spec, ok := p.dev.Connections[via]
	if !ok {
		return fmt.Errorf("connect %s via %q: no such connection", p.dev.Name, via)
	}
	if spec.Destroyed() {
		return fmt.Errorf("connect %s via %q: connection destroyed", p.dev.Name, via)
	}
	if spec.Protocol != models.ProtocolSSH {
		return fmt.Errorf("connect %s via %q: protocol %s not supported by ssh provider",
			p.dev.Name, via, spec.Protocol)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return nil
	}

	client, hops, err := p.dial(ctx, spec, timeout)
	if err != nil {
		return err
	}
	p.client = client
	p.hops = hops
	p.connected = true

	if opts.LearnHostname {
		if name := p.learnHostname(ctx); name != "" && name != p.dev.Name {
			p.logger.Info("learned device hostname",
				zap.String("configured", p.dev.Name),
				zap.String("hostname", name))
		}
	}
	return nil
}

// dial opens the SSH client for a spec, tunneling through each proxy hop in
// order. The first hop must be directly reachable.
func (p *SSHProvider) dial(ctx context.Context, spec *models.ConnectionSpec, timeout time.Duration) (*ssh.Client, []*ssh.Client, error) {
	config := p.clientConfig(p.dev, timeout)

	if spec.Proxy.Direct() {
		client, err := dialDirect(ctx, spec.Addr(), config, timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("dial %s: %w", spec.Addr(), err)
		}
		return client, nil, nil
	}

	var hops []*ssh.Client
	closeHops := func() {
		for i := len(hops) - 1; i >= 0; i-- {
			hops[i].Close()
		}
	}

	var carrier *ssh.Client
	for _, hop := range spec.Proxy {
		hopDev := p.lookup(hop.Device)
		if hopDev == nil {
			closeHops()
			return nil, nil, fmt.Errorf("proxy hop %q: unknown device", hop.Device)
		}
		hopSpec := firstDirectSpec(hopDev)
		if hopSpec == nil {
			closeHops()
			return nil, nil, fmt.Errorf("proxy hop %q: no direct connection", hop.Device)
		}
		hopConfig := p.clientConfig(hopDev, timeout)

		var client *ssh.Client
		var err error
		if carrier == nil {
			client, err = dialDirect(ctx, hopSpec.Addr(), hopConfig, timeout)
		} else {
			client, err = dialThrough(carrier, hopSpec.Addr(), hopConfig)
		}
		if err != nil {
			closeHops()
			return nil, nil, fmt.Errorf("proxy hop %q (%s): %w", hop.Device, hopSpec.Addr(), err)
		}
		hops = append(hops, client)
		carrier = client
	}

	client, err := dialThrough(carrier, spec.Addr(), config)
	if err != nil {
		closeHops()
		return nil, nil, fmt.Errorf("dial %s through proxy: %w", spec.Addr(), err)
	}
	return client, hops, nil
}

func dialDirect(ctx context.Context, addr string, config *ssh.ClientConfig, timeout time.Duration) (*ssh.Client, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

func dialThrough(carrier *ssh.Client, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	conn, err := carrier.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// clientConfig builds SSH auth from the device's default credential set.
func (p *SSHProvider) clientConfig(dev *models.Device, timeout time.Duration) *ssh.ClientConfig {
	cred := dev.Credentials["default"]
	return &ssh.ClientConfig{
		User:            cred.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(cred.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
}

// firstDirectSpec returns the first live, unproxied connection spec of a
// device, or nil.
func firstDirectSpec(dev *models.Device) *models.ConnectionSpec {
	if spec, ok := dev.Connections["default"]; ok && !spec.Destroyed() && spec.Proxy.Direct() {
		return spec
	}
	for _, spec := range dev.Connections {
		if !spec.Destroyed() && spec.Proxy.Direct() {
			return spec
		}
	}
	return nil
}

func (p *SSHProvider) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *SSHProvider) Destroy(via string) {
	if spec, ok := p.dev.Connections[via]; ok {
		spec.Destroy()
	}
}

func (p *SSHProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.client != nil {
		err = p.client.Close()
		p.client = nil
	}
	for i := len(p.hops) - 1; i >= 0; i-- {
		p.hops[i].Close()
	}
	p.hops = nil
	p.connected = false
	return err
}

// run executes one exec-mode command and returns its output.
func (p *SSHProvider) run(ctx context.Context, cmd string) (string, error) {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return "", fmt.Errorf("run %q on %s: not connected", cmd, p.dev.Name)
	}

	sess, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("session on %s: %w", p.dev.Name, err)
	}
	defer sess.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := sess.CombinedOutput(cmd)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			// Non-zero exit still carries usable output on most platforms.
			if _, ok := r.err.(*ssh.ExitError); ok {
				return string(r.out), nil
			}
			return "", fmt.Errorf("run %q on %s: %w", cmd, p.dev.Name, r.err)
		}
		return string(r.out), nil
	case <-ctx.Done():
		sess.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("run %q on %s: %w", cmd, p.dev.Name, ctx.Err())
	}
}

// runConfig applies configuration lines through an interactive shell. Exec
// channels on network devices only accept one command, so configuration is
// fed line by line.
func (p *SSHProvider) runConfig(ctx context.Context, lines []string) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return fmt.Errorf("configure %s: not connected", p.dev.Name)
	}

	sess, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("config session on %s: %w", p.dev.Name, err)
	}
	defer sess.Close()

	stdin, err := sess.StdinPipe()
	if err != nil {
		return fmt.Errorf("config stdin on %s: %w", p.dev.Name, err)
	}
	if err := sess.Shell(); err != nil {
		return fmt.Errorf("config shell on %s: %w", p.dev.Name, err)
	}

	all := append([]string{"configure terminal"}, lines...)
	all = append(all, "end", "exit")
	for _, line := range all {
		if _, err := fmt.Fprintln(stdin, line); err != nil {
			return fmt.Errorf("config write on %s: %w", p.dev.Name, err)
		}
	}
	stdin.Close()

	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("configure %s: %w", p.dev.Name, ctx.Err())
	}
}

// learnHostname reads the configured hostname from the running config.
func (p *SSHProvider) learnHostname(ctx context.Context) string {
	out, err := p.run(ctx, "show running-config | include ^hostname")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 2 && fields[0] == "hostname" {
			return fields[1]
		}
	}
	return ""
}

func (p *SSHProvider) GetCDPNeighbors(ctx context.Context) (*CDPTable, error) {
	out, err := p.run(ctx, "show cdp neighbors detail")
	if err != nil {
		return nil, err
	}
	return parseCDPNeighbors(out), nil
}

func (p *SSHProvider) GetLLDPNeighbors(ctx context.Context) (*LLDPTable, error) {
	out, err := p.run(ctx, "show lldp neighbors detail")
	if err != nil {
		return nil, err
	}
	return parseLLDPNeighbors(out), nil
}

func (p *SSHProvider) GetInterfaceIPv4(ctx context.Context, name string) (string, error) {
	out, err := p.run(ctx, "show ip interface "+name)
	if err != nil {
		return "", err
	}
	if addr := parseInterfaceIPv4(out); addr != "" {
		return addr, nil
	}
	// Some platforms only list addresses in the brief table.
	out, err = p.run(ctx, "show ip interface brief")
	if err != nil {
		return "", err
	}
	return interfaceIPv4FromBrief(out, name), nil
}

func (p *SSHProvider) ListInterfaces(ctx context.Context) ([]string, error) {
	out, err := p.run(ctx, "show interfaces description")
	if err != nil {
		return nil, err
	}
	return parseInterfaceDescription(out), nil
}

func (p *SSHProvider) VerifyCDP(ctx context.Context) bool {
	out, err := p.run(ctx, "show cdp")
	if err != nil {
		return false
	}
	return !strings.Contains(out, "not enabled")
}

func (p *SSHProvider) ConfigureCDP(ctx context.Context) error {
	return p.runConfig(ctx, []string{"cdp run"})
}

func (p *SSHProvider) UnconfigureCDP(ctx context.Context) error {
	return p.runConfig(ctx, []string{"no cdp run"})
}

func (p *SSHProvider) VerifyLLDP(ctx context.Context) bool {
	out, err := p.run(ctx, "show lldp")
	if err != nil {
		return false
	}
	return strings.Contains(out, "ACTIVE") || strings.Contains(out, "Status: active")
}

func (p *SSHProvider) ConfigureLLDP(ctx context.Context) error {
	return p.runConfig(ctx, []string{"lldp run"})
}

func (p *SSHProvider) UnconfigureLLDP(ctx context.Context) error {
	return p.runConfig(ctx, []string{"no lldp run"})
}
