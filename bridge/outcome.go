// Package bridge delivers the outcome of a native management operation to its
// caller exactly once, either through a single-assignment future (blocking
// mode) or through a success/failure callback pair (async mode).
//
// A completion runs on whatever goroutine the native client finishes on. It
// classifies the native response into an Outcome, then hands the Outcome to
// the Sink chosen at submission time while holding the Runtime's guard.
package bridge

import (
	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
)

// Result is the generic success envelope.
type Result = map[string]any

// Outcome is either Success or *Failure.
type Outcome interface {
	outcome()
}

// Success carries a translated result envelope.
type Success struct {
	Value Result
}

// Failure carries a classified error.
//
// Native is set only for native failures. ErrorMessages is set only for
// operations that report validation messages.
type Failure struct {
	Kind          core.ErrorKind
	Message       string
	File          string
	Line          int
	Native        *core.ErrorContext
	Cause         error
	ErrorMessages []string
}

func (Success) outcome()  {}
func (*Failure) outcome() {}

// BlockingError builds the error a blocking caller receives.
//
// Every native failure is an HTTP error, with an empty HTTP context when the
// native client captured none.
func (f *Failure) BlockingError() error {
	switch f.Kind {
	case core.KindHTTPError:
		var ctx core.ErrorContext
		if f.Native != nil {
			ctx = *f.Native
		}
		return core.NewHTTPError(f.Message, f.File, f.Line, ctx, f.ErrorMessages)
	case core.KindUnableToBuildResult:
		return core.NewUnableToBuildResultError(f.Message, f.File, f.Line, f.Cause)
	default:
		err := core.NewInternalSDKError(f.Message, f.Cause)
		err.File, err.Line = f.File, f.Line
		return err
	}
}

// AsyncError builds the error object and context bundle a failure callback receives.
func (f *Failure) AsyncError() (error, core.ErrorInfo) {
	info := core.ErrorInfo{
		Message:       f.Message,
		Kind:          f.Kind,
		File:          f.File,
		Line:          f.Line,
		ErrorMessages: f.ErrorMessages,
	}
	if f.Native != nil {
		return &core.NativeError{Context: *f.Native}, info
	}
	return f.BlockingError(), info
}
