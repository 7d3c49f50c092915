// Package attachtest provides an in-memory attach primitive that counts
// opens and closes.
package attachtest

import (
	"context"
	"errors"
	"sync"

	"agentctl/internal/attach"
)

// Opener is a fake attach primitive. Failures maps target ids to the error
// Open should return; FailTimes limits how many times each failure fires
// (0 means always).
type Opener struct {
	mu sync.Mutex

	Failures  map[string]error
	FailTimes map[string]int
	CloseErr  error
	ExecFunc  func(ctx context.Context, target, command string, args map[string]any) (map[string]any, error)

	attempts int
	opens    int
	closes   int
	open     map[*Channel]struct{}
}

// Open implements attach.Opener.
func (o *Opener) Open(ctx context.Context, id string) (attach.Channel, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.attempts++
	if err, ok := o.Failures[id]; ok {
		if n, limited := o.FailTimes[id]; limited {
			if n <= 1 {
				delete(o.Failures, id)
				delete(o.FailTimes, id)
			} else {
				o.FailTimes[id] = n - 1
			}
		}
		return nil, err
	}
	if o.open == nil {
		o.open = make(map[*Channel]struct{})
	}
	o.opens++
	ch := &Channel{opener: o, target: id}
	o.open[ch] = struct{}{}
	return ch, nil
}

// Attempts counts every Open call, failed or not.
func (o *Opener) Attempts() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attempts
}

// Opens counts successful opens.
func (o *Opener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

// Closes counts Close calls on opened channels.
func (o *Opener) Closes() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closes
}

// Leaked returns how many opened channels were never closed.
func (o *Opener) Leaked() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.open)
}

// Channel is the fake channel handed out by Opener.
type Channel struct {
	opener *Opener
	target string
	closed bool
}

// Execute implements attach.Channel.
func (c *Channel) Execute(ctx context.Context, command string, args map[string]any) (map[string]any, error) {
	o := c.opener
	o.mu.Lock()
	closed := c.closed
	fn := o.ExecFunc
	o.mu.Unlock()

	if closed {
		return nil, errors.New("channel closed")
	}
	if fn != nil {
		return fn(ctx, c.target, command, args)
	}
	return map[string]any{"command": command, "target": c.target}, nil
}

// Close implements attach.Channel.
func (c *Channel) Close() error {
	o := c.opener
	o.mu.Lock()
	defer o.mu.Unlock()

	if c.closed {
		return errors.New("channel closed twice")
	}
	c.closed = true
	o.closes++
	delete(o.open, c)
	return o.CloseErr
}
