package bridge

import "context"

type guardHeldKey struct{}

// WithGuardHeld marks ctx as used by a goroutine that holds the runtime
// guard. A blocking submission made with such a ctx releases the guard while
// it waits. Callbacks receive a ctx marked this way; hosts that hold their own
// guard (see WithGuard) mark ctx themselves before calling in.
//
// The mark is only valid on the goroutine that holds the guard.
func WithGuardHeld(ctx context.Context) context.Context {
	return context.WithValue(ctx, guardHeldKey{}, true)
}

// GuardHeld reports whether ctx was marked by WithGuardHeld.
func GuardHeld(ctx context.Context) bool {
	held, _ := ctx.Value(guardHeldKey{}).(bool)
	return held
}

// Wait blocks on a blocking-mode future, releasing the guard for the
// duration of the wait when ctx says the caller holds it.
func (r *Runtime) Wait(ctx context.Context, f *Future[Result]) (res Result, err error) {
	if !GuardHeld(ctx) {
		return Wait(f)
	}
	r.Unlocked(func() {
		res, err = Wait(f)
	})
	return res, err
}
