//go:build unix

package netchat

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/rectcircle/netchat/internal/logging"
	"github.com/rectcircle/netchat/internal/netchat/relay"
)

// newAcceptBackoff - delay between accepts while out of descriptors or buffers
func newAcceptBackoff() *backoff.Backoff {
	return &backoff.Backoff{Min: 5 * time.Millisecond, Max: time.Second}
}

// Server - runs one relay session per peer
type Server struct {
	// Relay - template for every session, its Logger is replaced per session
	Relay  relay.Relay
	Logger *zap.Logger

	stats ConnStats
}

// Stats - session counters
func (s *Server) Stats() *ConnStats { return &s.stats }

// Serve - accept connections on ln until ctx is done or ln is closed.
// Every connection gets its own session, accepting never waits on one.
// ln is closed, and live sessions are cancelled and waited for, on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := logging.OrNop(s.Logger)
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	retry := newAcceptBackoff()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Info("stop accepting", zap.Stringer("sessions", &s.stats))
				return nil
			}
			switch {
			case exhausted(err):
				delay := retry.Duration()
				logger.Warn("accept failed, retrying", zap.Error(err), zap.Duration("delay", delay))
				select {
				case <-ctx.Done():
				case <-time.After(delay):
				}
				continue
			case aborted(err):
				logger.Warn("accept failed", zap.Error(err))
				continue
			}
			return errors.Wrap(err, "accept")
		}
		retry.Reset()
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serve(ctx, conn, conn.RemoteAddr())
		}()
	}
}

// ServeUDP - run the single session of a datagram server on pc,
// replying to whichever peer sent last
func (s *Server) ServeUDP(ctx context.Context, pc net.PacketConn) error {
	ch := relay.NewPacketChannel(pc, s.Logger)
	o := s.serve(ctx, ch, nil)
	if o.Clean() || errors.Is(o.Err, context.Canceled) {
		return nil
	}
	return o.Err
}

func (s *Server) serve(ctx context.Context, ch io.ReadWriteCloser, remote net.Addr) relay.Outcome {
	id := s.stats.New()
	s.stats.Open()
	defer s.stats.Close()

	logger := logging.OrNop(s.Logger).With(zap.Int32("session", id))
	if remote != nil {
		logger = logger.With(zap.Stringer("remote", remote))
	}
	logger.Info("session open", zap.Stringer("sessions", &s.stats))

	r := s.Relay
	r.Logger = logger
	o := r.Run(ctx, ch)
	logOutcome(logger, o)
	return o
}

// aborted - the connection died before Accept returned it
func aborted(err error) bool {
	return errors.Is(err, unix.ECONNABORTED) ||
		errors.Is(err, unix.ECONNRESET) ||
		errors.Is(err, unix.EPROTO) ||
		errors.Is(err, unix.EINTR)
}

// exhausted - out of descriptors or buffers, accepting again later may work
func exhausted(err error) bool {
	return errors.Is(err, unix.EMFILE) ||
		errors.Is(err, unix.ENFILE) ||
		errors.Is(err, unix.ENOBUFS) ||
		errors.Is(err, unix.ENOMEM)
}
