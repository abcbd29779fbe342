package dispatch

import (
	"context"
	"runtime/debug"
	"time"
)

// invoke runs handler once. A done ctx skips it; a positive timeout bounds
// it, though only handlers that watch ctx notice. A panic is recovered into
// the result and passed to onPanic, whose own panic is swallowed.
func invoke(ctx context.Context, event any, handler Handler, timeout time.Duration, onPanic PanicHandler) (res Result) {
	if err := ctx.Err(); err != nil {
		return Result{Error: err, Skipped: true}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		r := recover()
		if r == nil {
			return
		}
		res = Result{
			Panicked:   true,
			PanicValue: r,
			PanicStack: debug.Stack(),
			Duration:   res.Duration,
		}
		if onPanic != nil {
			func() {
				defer func() { _ = recover() }()
				onPanic(event, r, res.PanicStack)
			}()
		}
	}()

	res.Error = handler.Handle(ctx, event)
	res.Success = res.Error == nil
	return res
}
