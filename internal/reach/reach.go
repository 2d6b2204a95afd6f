// Package reach answers one question for the discovery engine: does a
// candidate management address have a direct path from where the tool runs,
// or must the new device be reached by proxying through the device that
// discovered it.
package reach

import (
	"context"
	"net"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
)

// Checker reports direct reachability of an address.
type Checker interface {
	Reachable(ctx context.Context, addr string) bool
}

// Compile-time interface guard.
var _ Checker = (*PingChecker)(nil)

// PingChecker probes with ICMP echo first and falls back to a TCP dial on
// the SSH port, since ICMP is often filtered on management networks.
type PingChecker struct {
	timeout time.Duration
	logger  *zap.Logger

	// Privileged selects raw-socket ICMP. Unprivileged UDP ping works for
	// non-root runs on Linux with ping_group_range configured.
	Privileged bool
}

// NewPingChecker builds a checker with the given per-probe timeout.
func NewPingChecker(timeout time.Duration, logger *zap.Logger) *PingChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PingChecker{timeout: timeout, logger: logger}
}

func (c *PingChecker) Reachable(ctx context.Context, addr string) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}

	pinger, err := probing.NewPinger(host)
	if err == nil {
		pinger.Count = 1
		pinger.Timeout = c.timeout
		pinger.SetPrivileged(c.Privileged)
		if err := pinger.RunWithContext(ctx); err == nil && pinger.Statistics().PacketsRecv > 0 {
			return true
		}
	}

	// ICMP blocked or failed; an open SSH port is just as good a signal.
	dialer := &net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, "22"))
	if err != nil {
		c.logger.Debug("address not directly reachable", zap.String("addr", host))
		return false
	}
	conn.Close()
	return true
}
