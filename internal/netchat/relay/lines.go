package relay

import (
	"bufio"
	"io"

	"go.uber.org/zap"

	"github.com/rectcircle/netchat/internal/logging"
)

// Source - where outbound lines come from
type Source interface {
	// Lines - one newline-terminated line per receive, closed when input ends
	Lines() <-chan []byte
	// Unread - give back a received line, it becomes the next one delivered
	Unread(line []byte)
	// Err - why input ended, nil at end of input. Valid once Lines is closed.
	Err() error
}

// Lines - pump lines from a reader into a channel.
// Each line is received by exactly one consumer. Reading stdin outlives any
// one session, so a session that ends holding a line hands it back with Unread.
type Lines struct {
	ch   chan []byte
	back chan []byte
	done chan struct{}
	err  error
}

// NewLines - start pumping lines from r
func NewLines(r io.Reader, logger *zap.Logger) *Lines {
	l := &Lines{
		ch:   make(chan []byte),
		back: make(chan []byte),
		done: make(chan struct{}),
	}
	in := make(chan []byte)
	go l.read(r, in, logging.OrNop(logger))
	go l.dispatch(in)
	return l
}

func (l *Lines) read(r io.Reader, in chan<- []byte, logger *zap.Logger) {
	defer close(in)
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if len(line) > 0 {
				logger.Debug("dropping unterminated line at end of input", zap.Int("bytes", len(line)))
			}
			if err != io.EOF {
				l.err = err
			}
			return
		}
		in <- line
	}
}

// dispatch - hand lines out in order, given back lines first.
// At most one line is read ahead of the consumers.
func (l *Lines) dispatch(in <-chan []byte) {
	defer close(l.done)
	defer close(l.ch)
	var queue [][]byte
	for in != nil || len(queue) > 0 {
		var (
			recv <-chan []byte
			out  chan<- []byte
			next []byte
		)
		if len(queue) == 0 {
			recv = in
		} else {
			out, next = l.ch, queue[0]
		}
		select {
		case line, ok := <-recv:
			if !ok {
				in = nil
				continue
			}
			queue = append(queue, line)
		case line := <-l.back:
			queue = append([][]byte{line}, queue...)
		case out <- next:
			queue = queue[1:]
		}
	}
}

// Lines - implements Source
func (l *Lines) Lines() <-chan []byte { return l.ch }

// Unread - implements Source. A line given back after input has ended and
// every line was delivered is dropped.
func (l *Lines) Unread(line []byte) {
	select {
	case l.back <- line:
	case <-l.done:
	}
}

// Err - implements Source
func (l *Lines) Err() error { return l.err }
