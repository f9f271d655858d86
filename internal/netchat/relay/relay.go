package relay

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rectcircle/netchat/internal/logging"
	"github.com/rectcircle/netchat/internal/variable"
)

// Direction - one half of a session
type Direction int

const (
	// Outbound - local input to the peer
	Outbound Direction = iota + 1
	// Inbound - the peer to local output
	Inbound
)

func (d Direction) String() string {
	switch d {
	case Outbound:
		return "outbound"
	case Inbound:
		return "inbound"
	}
	return "unknown"
}

// Outcome - how a session ended
type Outcome struct {
	// Direction - the direction whose end ended the session
	Direction Direction
	// Err - nil when that direction reached end-of-stream
	Err error
	// Sent - bytes written to the Channel, prefixes included
	Sent int64
	// Received - bytes read from the Channel
	Received int64
}

// Clean - the session ended at end-of-stream, not on an error
func (o Outcome) Clean() bool { return o.Err == nil }

// Relay - settings shared by every session of a process
type Relay struct {
	Username string
	Input    Source
	Output   io.Writer
	Logger   *zap.Logger
}

// Prefix - "[username]: "
func Prefix(username string) string {
	return "[" + username + "]: "
}

// FormatLine - prefix line with the username, line keeps its terminator
func FormatLine(username string, line []byte) []byte {
	prefix := Prefix(username)
	msg := make([]byte, 0, len(prefix)+len(line))
	msg = append(msg, prefix...)
	return append(msg, line...)
}

// ended - terminal value of a direction. Always non-nil so that the
// first direction to return cancels the group.
type ended struct {
	direction Direction
	err       error
}

func (e *ended) Error() string {
	if e.err == nil {
		return e.direction.String() + " reached end of stream"
	}
	return e.direction.String() + ": " + e.err.Error()
}

// Run - relay between ch and the local input/output until either direction
// ends, ctx is cancelled, or an I/O error occurs. ch is closed on return.
func (r *Relay) Run(ctx context.Context, ch io.ReadWriteCloser) Outcome {
	logger := logging.OrNop(r.Logger)

	var (
		sent, received int64
		closeOnce      sync.Once
		closeErr       error
	)
	closeChannel := func() {
		closeOnce.Do(func() { closeErr = ch.Close() })
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return &ended{Outbound, r.outbound(gctx, ch, &sent, logger)}
	})
	g.Go(func() error {
		return &ended{Inbound, r.inbound(gctx, ch, &received)}
	})
	// unblocks the inbound Read once the other direction is done
	go func() {
		<-gctx.Done()
		closeChannel()
	}()

	first := &ended{}
	if !errors.As(g.Wait(), &first) {
		first = &ended{}
	}
	closeChannel()
	if closeErr != nil {
		logger.Debug("close channel", zap.Error(closeErr))
	}

	return Outcome{
		Direction: first.direction,
		Err:       first.err,
		Sent:      sent,
		Received:  received,
	}
}

type flusher interface {
	Flush() error
}

func (r *Relay) outbound(ctx context.Context, w io.Writer, sent *int64, logger *zap.Logger) error {
	lines := r.Input.Lines()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return r.Input.Err()
			}
			// select picks at random when both are ready
			if ctx.Err() != nil {
				r.Input.Unread(line)
				return ctx.Err()
			}
			n, err := w.Write(FormatLine(r.Username, line))
			*sent += int64(n)
			if errors.Is(err, ErrNoPeer) {
				logger.Warn("no peer to send to yet, line dropped")
				continue
			}
			if err != nil {
				return err
			}
			if f, ok := w.(flusher); ok {
				if err := f.Flush(); err != nil {
					return err
				}
			}
		}
	}
}

func (r *Relay) inbound(ctx context.Context, rd io.Reader, received *int64) error {
	buf := make([]byte, variable.DatagramBufferSize)
	for {
		n, err := rd.Read(buf)
		if n > 0 {
			*received += int64(n)
			// one Write per Read keeps a datagram in one piece
			if _, werr := r.Output.Write(buf[:n]); werr != nil {
				return errors.Wrap(werr, "write output")
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}
