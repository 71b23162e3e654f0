// Package job defines the contract the user-supplied work item
// implements, and the per-iteration context the run loop injects into
// it.
package job

import "context"

// Context is handed to the job body for the duration of one
// iteration. ExtendLock and Aborted are the only way the body
// interacts with the lock and the watchdog/termination machinery; it
// never calls the lock provider directly.
type Context struct {
	ctx        context.Context
	extendLock func()
	aborted    func() bool
}

// NewContext builds a job Context. extendLock and aborted are wired
// by the run loop to the watchdog and the cooperative abort flag.
func NewContext(ctx context.Context, extendLock func(), aborted func() bool) *Context {
	return &Context{ctx: ctx, extendLock: extendLock, aborted: aborted}
}

// Context returns the stdlib context carrying the iteration's
// deadline and cancellation.
func (c *Context) Context() context.Context {
	return c.ctx
}

// ExtendLock requests that the lease be renewed before the watchdog's
// next fire. It never blocks: the actual renewal happens on the
// watchdog's own goroutine.
func (c *Context) ExtendLock() {
	c.extendLock()
}

// Aborted reports whether a watchdog expiry or termination request
// has already been raised for this iteration. Long-running job bodies
// should check this at safe points between side effects.
func (c *Context) Aborted() bool {
	return c.aborted()
}

// Job is the user-supplied unit of work. Run is called under the
// lock, once per iteration, and must be re-entrant: no mutable state
// may persist between calls beyond what the caller manages itself.
type Job interface {
	Run(ctx *Context) error
}

// Func adapts a plain function to the Job interface.
type Func func(ctx *Context) error

func (f Func) Run(ctx *Context) error { return f(ctx) }

var _ Job = Func(nil)
