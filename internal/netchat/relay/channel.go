package relay

import (
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rectcircle/netchat/internal/logging"
)

// ErrNoPeer - a PacketChannel has not received anything yet, so it has
// nowhere to send to
var ErrNoPeer = errors.New("relay: no peer has sent a datagram yet")

type peer struct{ addr net.Addr }

// PacketChannel - Channel over an unconnected datagram socket.
// Writes go to whichever address the last datagram came from.
type PacketChannel struct {
	conn   net.PacketConn
	peer   atomic.Pointer[peer]
	logger *zap.Logger
}

// NewPacketChannel - wrap conn, owning it from now on
func NewPacketChannel(conn net.PacketConn, logger *zap.Logger) *PacketChannel {
	return &PacketChannel{conn: conn, logger: logging.OrNop(logger)}
}

// Read - read one datagram and remember its sender
func (c *PacketChannel) Read(p []byte) (int, error) {
	n, addr, err := c.conn.ReadFrom(p)
	if err == nil && addr != nil {
		last := c.peer.Swap(&peer{addr})
		if last == nil || last.addr.String() != addr.String() {
			c.logger.Info("udp peer", zap.Stringer("remote", addr))
		}
	}
	return n, err
}

// Write - send p as one datagram to the current peer
func (c *PacketChannel) Write(p []byte) (int, error) {
	last := c.peer.Load()
	if last == nil {
		return 0, ErrNoPeer
	}
	return c.conn.WriteTo(p, last.addr)
}

// Peer - the address replies go to, nil until something was received
func (c *PacketChannel) Peer() net.Addr {
	if last := c.peer.Load(); last != nil {
		return last.addr
	}
	return nil
}

// LocalAddr - address of the underlying socket
func (c *PacketChannel) LocalAddr() net.Addr { return c.conn.LocalAddr() }

// Close - close the underlying socket
func (c *PacketChannel) Close() error { return c.conn.Close() }
