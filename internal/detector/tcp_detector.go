package detector

import (
	"context"
	"net"
	"time"
)

// DefaultProbeTimeout bounds a single connection attempt.
const DefaultProbeTimeout = time.Second

// Probe attempts one TCP connection to addr and reports whether it succeeded
// within timeout. Refusals, timeouts and cancellations all read as false; a
// probe never retries.
func Probe(ctx context.Context, addr string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// TCPDetector reports the backend alive when its health address accepts a connection.
type TCPDetector struct {
	Addr    string
	Timeout time.Duration
}

func (d TCPDetector) Alive() (bool, error) {
	return Probe(context.Background(), d.Addr, d.Timeout), nil
}

func (d TCPDetector) Describe() string { return "tcp:" + d.Addr }
