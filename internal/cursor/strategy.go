package cursor

import "context"

// strategy selects how a reader operation waits on the engine. Every
// operation has a single implementation that takes a strategy; the
// synchronous and context-aware entry points differ only in the value they
// pass.
type strategy struct {
	ctx   context.Context
	async bool
}

// syncStrategy runs to completion on the calling goroutine with no
// cancellation channel.
func syncStrategy() strategy {
	return strategy{ctx: context.Background()}
}

// asyncStrategy observes ctx and aborts the in-flight engine call when it is
// cancelled.
func asyncStrategy(ctx context.Context) strategy {
	if ctx == nil {
		ctx = context.Background()
	}
	return strategy{ctx: ctx, async: true}
}

// enterExplicitCancel arranges for cancel to run if the context is cancelled
// while the engine call is in flight. The returned func must be called when
// the call returns; if cancel has already started it waits for it to finish,
// so no cancel outlives the call it was scoped to.
func (s strategy) enterExplicitCancel(cancel func()) (exit func()) {
	if !s.async {
		return func() {}
	}
	done := make(chan struct{})
	stop := context.AfterFunc(s.ctx, func() {
		defer close(done)
		cancel()
	})
	return func() {
		if !stop() {
			<-done
		}
	}
}

// canceled returns a CanceledError when the strategy's context is done.
func (s strategy) canceled(op string) error {
	if !s.async {
		return nil
	}
	if err := s.ctx.Err(); err != nil {
		return &CanceledError{Op: op, Cause: err}
	}
	return nil
}
