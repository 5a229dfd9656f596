package transport

import (
	"context"
	"net"
)

// Dial connects to an rsync daemon's TCP listen address, returning the raw
// connection as an io.ReadWriter (net.Conn already satisfies it; this exists
// so callers depend on the transport package rather than net directly).
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}
