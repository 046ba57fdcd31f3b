// Package fake provides a scripted in-memory execution channel for tests.
package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Reply is one scripted answer for a request. Delay, when set, is waited
// before answering and is interruptible by the request context.
type Reply struct {
	Value interface{}
	Err   error
	Delay time.Duration
}

// Call records one request seen by the channel
type Call struct {
	Addr    string
	Command string
	Args    []interface{}
}

// Channel is a scripted ExecutionChannel where replies are configured per
// address and command, popped in FIFO order. Requests with no scripted reply
// fail, so a test states everything it expects.
type Channel struct {
	sync.Mutex
	addrs   []string
	replies map[string][]Reply
	Calls   []Call
}

// NewChannel returns a channel answering for the given addresses
func NewChannel(addrs ...string) *Channel {
	return &Channel{
		addrs:   addrs,
		replies: make(map[string][]Reply),
	}
}

func scriptKey(addr, command string) string {
	return addr + "/" + strings.ToUpper(command)
}

// Push appends a scripted reply for command at addr
func (c *Channel) Push(addr, command string, reply Reply) {
	c.Lock()
	defer c.Unlock()
	key := scriptKey(addr, command)
	c.replies[key] = append(c.replies[key], reply)
}

// PushValue appends a scripted successful reply for command at addr
func (c *Channel) PushValue(addr, command string, value interface{}) {
	c.Push(addr, command, Reply{Value: value})
}

// PushError appends a scripted failed reply for command at addr
func (c *Channel) PushError(addr, command string, err error) {
	c.Push(addr, command, Reply{Err: err})
}

// PushSlots scripts one CLUSTER SLOTS answer at addr
func (c *Channel) PushSlots(addr string, slots ...ClusterSlotsSlot) {
	c.PushValue(addr, "CLUSTER", SlotsReply(slots...))
}

// Do implements cluster.ExecutionChannel
func (c *Channel) Do(ctx context.Context, addr, command string, args ...interface{}) (interface{}, error) {
	c.Lock()
	c.Calls = append(c.Calls, Call{Addr: addr, Command: strings.ToUpper(command), Args: args})
	key := scriptKey(addr, command)
	list := c.replies[key]
	if len(list) == 0 {
		c.Unlock()
		return nil, fmt.Errorf("fake.Channel: no scripted reply for %s at %s", strings.ToUpper(command), addr)
	}
	reply := list[0]
	c.replies[key] = list[1:]
	c.Unlock()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return reply.Value, reply.Err
}

// Addrs implements cluster.ExecutionChannel
func (c *Channel) Addrs() []string {
	return c.addrs
}

// RandomAddr implements cluster.ExecutionChannel. The first address is
// returned so tests are deterministic.
func (c *Channel) RandomAddr() (string, error) {
	if len(c.addrs) == 0 {
		return "", fmt.Errorf("fake.Channel: no addresses configured")
	}
	return c.addrs[0], nil
}

// Close implements cluster.ExecutionChannel
func (c *Channel) Close() {}

// CallsTo returns the recorded calls of the given command at addr
func (c *Channel) CallsTo(addr, command string) []Call {
	c.Lock()
	defer c.Unlock()
	var calls []Call
	for _, call := range c.Calls {
		if call.Addr == addr && call.Command == strings.ToUpper(command) {
			calls = append(calls, call)
		}
	}
	return calls
}

// CountCalls returns how many times command was issued across all addresses
func (c *Channel) CountCalls(command string) int {
	c.Lock()
	defer c.Unlock()
	n := 0
	for _, call := range c.Calls {
		if call.Command == strings.ToUpper(command) {
			n++
		}
	}
	return n
}

// WaitCalls blocks until command has been issued count times, or the timeout
// elapses. Returns whether the count was reached. Useful when a request is
// issued from a goroutine the caller does not join.
func (c *Channel) WaitCalls(command string, count int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if c.CountCalls(command) >= count {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
