package relay

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, src Source) []string {
	t.Helper()
	var got []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case line, ok := <-src.Lines():
			if !ok {
				return got
			}
			got = append(got, string(line))
		case <-timeout:
			t.Fatal("lines were not closed")
			return got
		}
	}
}

func TestLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "complete lines", input: "hello\nworld\n", want: []string{"hello\n", "world\n"}},
		{name: "partial last line is dropped", input: "hello\nwor", want: []string{"hello\n"}},
		{name: "empty input", input: "", want: nil},
		{name: "blank lines are lines", input: "\n\n", want: []string{"\n", "\n"}},
		{name: "crlf kept verbatim", input: "hi\r\n", want: []string{"hi\r\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := NewLines(strings.NewReader(tt.input), nil)
			assert.Equal(t, tt.want, drain(t, lines))
			assert.NoError(t, lines.Err())
		})
	}
}

func TestLines_ReadError(t *testing.T) {
	boom := errors.New("boom")
	lines := NewLines(io.MultiReader(strings.NewReader("first\n"), iotest.ErrReader(boom)), nil)
	assert.Equal(t, []string{"first\n"}, drain(t, lines))
	assert.Equal(t, boom, lines.Err())
}

func TestLines_EachLineHasOneConsumer(t *testing.T) {
	pr, pw := io.Pipe()
	lines := NewLines(pr, nil)

	got := make(chan string, 2)
	for i := 0; i < 2; i++ {
		go func() {
			if line, ok := <-lines.Lines(); ok {
				got <- string(line)
			}
		}()
	}
	_, err := pw.Write([]byte("a\nb\n"))
	require.NoError(t, err)

	var all []string
	for i := 0; i < 2; i++ {
		select {
		case line := <-got:
			all = append(all, line)
		case <-time.After(5 * time.Second):
			t.Fatal("line not delivered")
		}
	}
	assert.ElementsMatch(t, []string{"a\n", "b\n"}, all)
	require.NoError(t, pw.Close())
}

func receive(t *testing.T, src Source) string {
	t.Helper()
	select {
	case line := <-src.Lines():
		return string(line)
	case <-time.After(5 * time.Second):
		t.Fatal("no line")
		return ""
	}
}

func TestLines_Unread(t *testing.T) {
	lines := NewLines(strings.NewReader("one\ntwo\nthree\n"), nil)

	first := receive(t, lines)
	assert.Equal(t, "one\n", first)
	lines.Unread([]byte(first))
	assert.Equal(t, "one\n", receive(t, lines))
	assert.Equal(t, "two\n", receive(t, lines))

	lines.Unread([]byte("two\n"))
	assert.Equal(t, []string{"two\n", "three\n"}, drain(t, lines))

	// input is over, giving a line back must not block
	done := make(chan struct{})
	go func() {
		lines.Unread([]byte("late\n"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Unread blocked after input ended")
	}
}
