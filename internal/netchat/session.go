package netchat

import (
	"context"

	"github.com/jpillora/sizestr"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rectcircle/netchat/internal/netchat/relay"
)

func logOutcome(logger *zap.Logger, o relay.Outcome) {
	fields := []zap.Field{
		zap.Stringer("ended", o.Direction),
		zap.String("sent", sizestr.ToString(o.Sent)),
		zap.String("received", sizestr.ToString(o.Received)),
	}
	switch {
	case o.Clean():
		logger.Info("session closed", fields...)
	case errors.Is(o.Err, context.Canceled):
		logger.Info("session cancelled", fields...)
	default:
		logger.Warn("session failed", append(fields, zap.Error(o.Err))...)
	}
}
