package bridge

import (
	"github.com/cockroachdb/errors"

	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
	"github.com/DrewBradfordXYZ/cbmgmt-go/operations"
)

// Completion describes how one operation's native response is classified.
type Completion struct {
	// Op is the operation tag, used for logging and the unhandled-error channel.
	Op string
	// NativeMessage is the message of a native failure.
	NativeMessage string
	// BuildMessage is the message of a result that could not be built.
	BuildMessage string
	// ValidationMessages attaches the response's validation messages to native failures.
	ValidationMessages bool
	// Build translates a successful response into a result envelope.
	Build func(operations.Response) (Result, error)
	// OnDelivered, if set, is called after delivery, outside the guard.
	OnDelivered func(mode string, o Outcome)
}

// Classify turns a native response into an Outcome.
func (c *Completion) Classify(resp operations.Response) Outcome {
	status := resp.Status()
	if status.Failed() {
		file, line := core.Caller(0)
		f := &Failure{
			Kind:    core.KindHTTPError,
			Message: c.NativeMessage,
			File:    file,
			Line:    line,
			Native:  &status,
			Cause:   status.Err,
		}
		if c.ValidationMessages {
			f.ErrorMessages = []string{}
			if v, ok := resp.(operations.ValidationReporter); ok && v.ValidationMessages() != nil {
				f.ErrorMessages = v.ValidationMessages()
			}
		}
		return f
	}

	res, err := c.build(resp)
	if err != nil {
		file, line := core.Caller(0)
		return &Failure{
			Kind:    core.KindUnableToBuildResult,
			Message: c.BuildMessage,
			File:    file,
			Line:    line,
			Cause:   err,
		}
	}
	return Success{Value: res}
}

func (c *Completion) build(resp operations.Response) (res Result, err error) {
	defer func() {
		if x := recover(); x != nil {
			err = errors.Newf("panicked with error: %v", x)
		}
	}()
	if c.Build == nil {
		return Result{}, nil
	}
	return c.Build(resp)
}

// Bind returns the closure handed to the native client. It must be invoked
// exactly once; it classifies the response and delivers the outcome to sink
// while holding the runtime's guard.
func (c *Completion) Bind(rt *Runtime, sink Sink) func(operations.Response) {
	return func(resp operations.Response) {
		var o Outcome
		rt.Locked(func() {
			o = c.Classify(resp)
			sink.deliver(rt, c.Op, o)
		})
		if c.OnDelivered != nil {
			c.OnDelivered(sink.Mode(), o)
		}
	}
}
