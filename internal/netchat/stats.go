package netchat

import (
	"fmt"
	"sync/atomic"
)

// ConnStats keep track of both currently open and total session counts
type ConnStats struct {
	count atomic.Int32
	open  atomic.Int32
}

// New adds one to the total count and returns the new session's id
func (c *ConnStats) New() int32 {
	return c.count.Add(1)
}

// Open adds one to the open count
func (c *ConnStats) Open() {
	c.open.Add(1)
}

// Close subtracts one from the open count
func (c *ConnStats) Close() {
	c.open.Add(-1)
}

// Snapshot - open and total counts
func (c *ConnStats) Snapshot() (open, total int32) {
	return c.open.Load(), c.count.Load()
}

func (c *ConnStats) String() string {
	open, total := c.Snapshot()
	return fmt.Sprintf("[%d/%d]", open, total)
}
