//go:build unix

// Package endpoint turns a validated EndpointConfig into sockets: a bound,
// not yet connected endpoint first, then exactly one of a listener, a packet
// socket or an outbound connection.
package endpoint

import (
	"context"
	"net"
	"net/netip"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/rectcircle/netchat/internal/config"
	"github.com/rectcircle/netchat/internal/variable"
)

// connectPollInterval bounds how long a pending connect ignores ctx
const connectPollInterval = 200 * time.Millisecond

// BoundEndpoint - a socket bound to a local address, owned until consumed
type BoundEndpoint struct {
	mu       sync.Mutex
	fd       int
	protocol config.Protocol
	local    netip.AddrPort
}

// Bind - create a socket of cfg's protocol and bind it to cfg.Bind().
// Port 0 binds an OS-assigned port, see LocalAddr.
func Bind(cfg config.EndpointConfig) (*BoundEndpoint, error) {
	want := cfg.Bind()
	network := cfg.Protocol().String()
	fail := func(op string, err error) error {
		return &BindError{Op: op, Protocol: network, Addr: want.String(), Err: err}
	}

	typ, proto := unix.SOCK_STREAM, unix.IPPROTO_TCP
	if cfg.Protocol() == config.UDP {
		typ, proto = unix.SOCK_DGRAM, unix.IPPROTO_UDP
	}
	fd, err := socket(family(want), typ, proto)
	if err != nil {
		return nil, fail("socket", err)
	}

	if cfg.Protocol() == config.TCP && cfg.Role() == config.Listener {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			unix.Close(fd)
			return nil, fail("socket", os.NewSyscallError("setsockopt", err))
		}
	}

	sa, err := toSockaddr(want)
	if err != nil {
		unix.Close(fd)
		return nil, fail("bind", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fail("bind", os.NewSyscallError("bind", err))
	}

	bound, err := unix.Getsockname(fd)
	if err == nil {
		var local netip.AddrPort
		if local, err = fromSockaddr(bound); err == nil {
			if local.Addr().WithZone("") != want.Addr().WithZone("") ||
				(want.Port() != 0 && local.Port() != want.Port()) {
				err = errors.Errorf("socket reports %s", local)
			} else {
				return &BoundEndpoint{fd: fd, protocol: cfg.Protocol(), local: local}, nil
			}
		}
	}
	unix.Close(fd)
	return nil, fail("bind", err)
}

// socket - create a close-on-exec socket
func socket(family, typ, proto int) (int, error) {
	// hold ForkLock so a concurrent fork cannot inherit fd before CloseOnExec
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()
	fd, err := unix.Socket(family, typ, proto)
	if err != nil {
		return -1, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)
	return fd, nil
}

// Protocol - tcp or udp
func (b *BoundEndpoint) Protocol() config.Protocol { return b.protocol }

// LocalAddr - the bound address, with the concrete port when 0 was requested
func (b *BoundEndpoint) LocalAddr() net.Addr {
	if b.protocol == config.UDP {
		return net.UDPAddrFromAddrPort(b.local)
	}
	return net.TCPAddrFromAddrPort(b.local)
}

// take - hand the fd to exactly one consumer
func (b *BoundEndpoint) take() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fd < 0 {
		return -1, ErrConsumed
	}
	fd := b.fd
	b.fd = -1
	return fd, nil
}

// Close - release the socket if it was never consumed
func (b *BoundEndpoint) Close() error {
	fd, err := b.take()
	if err != nil {
		return nil
	}
	return os.NewSyscallError("close", unix.Close(fd))
}

// Listen - mark a tcp endpoint as listening with variable.ListenBacklog
func (b *BoundEndpoint) Listen() (net.Listener, error) {
	if b.protocol != config.TCP {
		return nil, ErrNotStream
	}
	fd, err := b.take()
	if err != nil {
		return nil, err
	}
	if err := unix.Listen(fd, variable.ListenBacklog); err != nil {
		unix.Close(fd)
		return nil, &BindError{Op: "listen", Protocol: b.protocol.String(), Addr: b.local.String(), Err: os.NewSyscallError("listen", err)}
	}
	f := os.NewFile(uintptr(fd), "netchat-listener")
	defer f.Close()
	ln, err := net.FileListener(f)
	if err != nil {
		return nil, &BindError{Op: "listen", Protocol: b.protocol.String(), Addr: b.local.String(), Err: err}
	}
	return ln, nil
}

// PacketConn - a udp endpoint is usable as soon as it is bound
func (b *BoundEndpoint) PacketConn() (net.PacketConn, error) {
	if b.protocol != config.UDP {
		return nil, ErrNotPacket
	}
	fd, err := b.take()
	if err != nil {
		return nil, err
	}
	f := os.NewFile(uintptr(fd), "netchat-packet")
	defer f.Close()
	return net.FilePacketConn(f)
}

// Connect - connect the endpoint to peer.
// For tcp this performs the handshake and honours ctx while it is pending.
// ctx is checked between polls, so a cancel takes effect up to
// connectPollInterval late.
// For udp it only records the default destination.
func (b *BoundEndpoint) Connect(ctx context.Context, peer netip.AddrPort) (net.Conn, error) {
	fd, err := b.take()
	if err != nil {
		return nil, err
	}
	fail := func(err error) error {
		unix.Close(fd)
		return &ConnectError{Protocol: b.protocol.String(), Addr: peer.String(), Err: err}
	}

	sa, err := toSockaddr(peer)
	if err != nil {
		return nil, fail(err)
	}

	if b.protocol == config.UDP {
		if err := unix.Connect(fd, sa); err != nil {
			return nil, fail(os.NewSyscallError("connect", err))
		}
	} else {
		if err := unix.SetNonblock(fd, true); err != nil {
			return nil, fail(os.NewSyscallError("setnonblock", err))
		}
		switch err := unix.Connect(fd, sa); err {
		case nil:
		case unix.EINPROGRESS, unix.EALREADY, unix.EINTR:
			if err := waitConnected(ctx, fd); err != nil {
				return nil, fail(err)
			}
		default:
			return nil, fail(os.NewSyscallError("connect", err))
		}
	}

	f := os.NewFile(uintptr(fd), "netchat-conn")
	defer f.Close()
	conn, err := net.FileConn(f)
	if err != nil {
		return nil, &ConnectError{Protocol: b.protocol.String(), Addr: peer.String(), Err: err}
	}
	return conn, nil
}

// waitConnected - wait for a non-blocking connect to complete
func waitConnected(ctx context.Context, fd int) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(fds, int(connectPollInterval/time.Millisecond))
		if err == unix.EINTR || (err == nil && n == 0) {
			continue
		}
		if err != nil {
			return os.NewSyscallError("poll", err)
		}
		soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return os.NewSyscallError("getsockopt", err)
		}
		if soErr != 0 {
			return os.NewSyscallError("connect", syscall.Errno(soErr))
		}
		return nil
	}
}
