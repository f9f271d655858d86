//go:build unix

/*
Package netchat - one-to-one line chat over tcp or udp

	serve:   Bind -> Listen -> Server.Serve -> one relay session per peer
	         Bind -> PacketConn -> Server.ServeUDP -> one relay session
	connect: Bind -> Connect -> Client.Run -> one relay session
*/
package netchat

import (
	"context"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/rectcircle/netchat/internal/config"
	"github.com/rectcircle/netchat/internal/logging"
	"github.com/rectcircle/netchat/internal/netchat/endpoint"
	"github.com/rectcircle/netchat/internal/netchat/relay"
)

// Options - everything Run needs, resolved by the caller
type Options struct {
	Endpoint config.EndpointConfig
	Username string
	Input    relay.Source
	Output   io.Writer
	Logger   *zap.Logger
	// Ready - if set, called with the local address once peers can reach it
	Ready func(net.Addr)
}

// Run - bind, then serve or connect according to the endpoint's role.
// Bind, listen and connect failures are returned as the endpoint package's
// typed errors.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Endpoint
	logger := logging.OrNop(opts.Logger).With(zap.Stringer("protocol", cfg.Protocol()))

	b, err := endpoint.Bind(cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	logger.Info("socket bound", zap.Stringer("local", b.LocalAddr()), zap.Stringer("role", cfg.Role()))

	r := relay.Relay{Username: opts.Username, Input: opts.Input, Output: opts.Output}
	if cfg.Role() == config.Listener {
		return serve(ctx, b, r, logger, opts.Ready)
	}
	return connect(ctx, b, cfg, r, logger, opts.Ready)
}

func serve(ctx context.Context, b *endpoint.BoundEndpoint, r relay.Relay, logger *zap.Logger, ready func(net.Addr)) error {
	s := &Server{Relay: r, Logger: logger}
	if b.Protocol() == config.UDP {
		pc, err := b.PacketConn()
		if err != nil {
			return err
		}
		logger.Info("waiting for datagrams", zap.Stringer("local", pc.LocalAddr()))
		notify(ready, pc.LocalAddr())
		return s.ServeUDP(ctx, pc)
	}

	ln, err := b.Listen()
	if err != nil {
		return err
	}
	logger.Info("server listening", zap.Stringer("local", ln.Addr()))
	notify(ready, ln.Addr())
	return s.Serve(ctx, ln)
}

func connect(ctx context.Context, b *endpoint.BoundEndpoint, cfg config.EndpointConfig, r relay.Relay, logger *zap.Logger, ready func(net.Addr)) error {
	conn, err := b.Connect(ctx, cfg.Peer())
	if err != nil {
		return err
	}
	logger = logger.With(zap.Stringer("remote", conn.RemoteAddr()))
	logger.Info("connection established", zap.Stringer("local", conn.LocalAddr()))
	notify(ready, conn.LocalAddr())
	c := &Client{Relay: r, Logger: logger}
	return c.Run(ctx, conn)
}

func notify(ready func(net.Addr), addr net.Addr) {
	if ready != nil {
		ready(addr)
	}
}
