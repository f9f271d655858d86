package netchat

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/rectcircle/netchat/internal/logging"
	"github.com/rectcircle/netchat/internal/netchat/relay"
)

// Client - runs exactly one session
type Client struct {
	Relay  relay.Relay
	Logger *zap.Logger
}

// Run - relay over ch until the session ends. Returns nil when it ended at
// end of stream or by ctx, the session's error otherwise.
func (c *Client) Run(ctx context.Context, ch io.ReadWriteCloser) error {
	logger := logging.OrNop(c.Logger)
	r := c.Relay
	r.Logger = logger
	o := r.Run(ctx, ch)
	logOutcome(logger, o)
	if o.Clean() || ctx.Err() != nil {
		return nil
	}
	return o.Err
}
