package endpoint

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConsumed - the bound endpoint was already listened, connected or closed
	ErrConsumed = errors.New("endpoint: bound endpoint already consumed")
	// ErrNotStream - listen on a datagram endpoint
	ErrNotStream = errors.New("endpoint: listen requires a tcp endpoint")
	// ErrNotPacket - packet conn from a stream endpoint
	ErrNotPacket = errors.New("endpoint: packet conn requires a udp endpoint")
)

// BindError - the OS refused to create, bind or listen on the socket
type BindError struct {
	// Op - socket, bind or listen
	Op       string
	Protocol string
	Addr     string
	Err      error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("%s %s %s: %s", e.Op, e.Protocol, e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// ConnectError - the peer could not be reached
type ConnectError struct {
	Protocol string
	Addr     string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s %s: %s", e.Protocol, e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
