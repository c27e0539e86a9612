package operations

// Executor is the native client boundary.
//
// Execute must invoke done exactly once, from any goroutine, with the
// response type matching req. Implementations never invoke done
// synchronously while holding locks the caller might need.
type Executor interface {
	Execute(req Request, done func(Response))
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(req Request, done func(Response))

func (f ExecutorFunc) Execute(req Request, done func(Response)) {
	f(req, done)
}
