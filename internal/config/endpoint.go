package config

import (
	"fmt"
	"net/netip"

	"github.com/pkg/errors"

	"github.com/rectcircle/netchat/tools"
)

// Protocol - transport protocol of a session
type Protocol int

const (
	// TCP - reliable byte stream, the default
	TCP Protocol = iota
	// UDP - one datagram per line
	UDP
)

// String - network name usable with the net package
func (p Protocol) String() string {
	if p == UDP {
		return "udp"
	}
	return "tcp"
}

// Role - which side of the session this process is
type Role int

const (
	// Listener - binds and waits for peers
	Listener Role = iota
	// Initiator - connects to one peer
	Initiator
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "listener"
}

// AddressParseError - the address/port pair is not a valid literal IP address
type AddressParseError struct {
	Address string
	Err     error
}

func (e *AddressParseError) Error() string {
	return fmt.Sprintf("%s is not a valid IP address: %s", e.Address, e.Err)
}

func (e *AddressParseError) Unwrap() error { return e.Err }

// ParseAddrPort - parse a literal IPv4/IPv6 address and a port.
// IPv4-mapped IPv6 addresses are unmapped.
func ParseAddrPort(host string, port uint16) (netip.AddrPort, error) {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.AddrPort{}, &AddressParseError{
			Address: tools.ToAddressString(host, port),
			Err:     err,
		}
	}
	return netip.AddrPortFrom(addr.Unmap(), port), nil
}

// EndpointConfig - validated network configuration of one process.
// The zero value is not usable, build it with NewEndpointConfig.
type EndpointConfig struct {
	protocol Protocol
	role     Role
	bind     netip.AddrPort
	peer     netip.AddrPort
}

// NewEndpointConfig - validate host and port for the given role.
// A Listener binds to host:port. An Initiator connects to host:port
// from an ephemeral port on the unspecified address of the same family.
func NewEndpointConfig(protocol Protocol, role Role, host string, port uint16) (EndpointConfig, error) {
	target, err := ParseAddrPort(host, port)
	if err != nil {
		return EndpointConfig{}, err
	}
	cfg := EndpointConfig{protocol: protocol, role: role}
	if role == Listener {
		cfg.bind = target
		return cfg, nil
	}
	if port == 0 {
		return EndpointConfig{}, &AddressParseError{
			Address: target.String(),
			Err:     errors.New("peer port must not be 0"),
		}
	}
	local := netip.IPv4Unspecified()
	if target.Addr().Is6() {
		local = netip.IPv6Unspecified()
	}
	cfg.bind = netip.AddrPortFrom(local, 0)
	cfg.peer = target
	return cfg, nil
}

// Protocol - tcp or udp
func (c EndpointConfig) Protocol() Protocol { return c.protocol }

// Role - listener or initiator
func (c EndpointConfig) Role() Role { return c.role }

// Bind - local address to bind
func (c EndpointConfig) Bind() netip.AddrPort { return c.bind }

// Peer - remote address, invalid for a Listener
func (c EndpointConfig) Peer() netip.AddrPort { return c.peer }

func (c EndpointConfig) String() string {
	if c.role == Initiator {
		return fmt.Sprintf("%s %s %s -> %s", c.protocol, c.role, c.bind, c.peer)
	}
	return fmt.Sprintf("%s %s %s", c.protocol, c.role, c.bind)
}
