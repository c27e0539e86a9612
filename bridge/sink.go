package bridge

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
)

// Delivery modes.
const (
	ModeBlocking = "blocking"
	ModeAsync    = "async"
)

// SuccessFunc receives the result envelope of a successful operation. ctx
// is marked with WithGuardHeld.
type SuccessFunc func(ctx context.Context, res Result)

// FailureFunc receives the error object and context bundle of a failed operation.
type FailureFunc func(ctx context.Context, err error, info core.ErrorInfo)

// Sink receives the single outcome of one operation.
type Sink interface {
	Mode() string
	deliver(rt *Runtime, op string, o Outcome)
}

type blockingSink struct {
	promise *Promise[Result]
}

// Blocking returns a sink that assigns the outcome to p.
func Blocking(p *Promise[Result]) Sink {
	return &blockingSink{promise: p}
}

func (s *blockingSink) Mode() string { return ModeBlocking }

func (s *blockingSink) deliver(rt *Runtime, op string, o Outcome) {
	var err error
	switch o := o.(type) {
	case Success:
		err = s.promise.SetValue(o.Value)
	case *Failure:
		err = s.promise.SetError(o.BlockingError())
	}
	if err != nil {
		rt.logger.Warn("outcome not delivered", core.FieldOp(op), zap.Error(err))
	}
}

type callbackSink struct {
	ctx       context.Context
	onSuccess SuccessFunc
	onFailure FailureFunc
}

// Callbacks returns a sink that invokes onSuccess or onFailure exactly once.
// The callbacks receive ctx without its cancellation, marked with WithGuardHeld.
func Callbacks(ctx context.Context, onSuccess SuccessFunc, onFailure FailureFunc) Sink {
	return &callbackSink{
		ctx:       WithGuardHeld(context.WithoutCancel(ctx)),
		onSuccess: onSuccess,
		onFailure: onFailure,
	}
}

func (s *callbackSink) Mode() string { return ModeAsync }

func (s *callbackSink) deliver(rt *Runtime, op string, o Outcome) {
	switch o := o.(type) {
	case Success:
		rt.call(op, func() { s.onSuccess(s.ctx, o.Value) })
	case *Failure:
		err, info := o.AsyncError()
		rt.call(op, func() { s.onFailure(s.ctx, err, info) })
	}
}

// NewSink selects the delivery mode from the callbacks given at submission.
//
// With neither callback it returns a blocking sink and the future to wait on.
// With both it returns a callback sink and a nil future. Giving exactly one
// is a contract violation.
func NewSink(ctx context.Context, onSuccess SuccessFunc, onFailure FailureFunc) (Sink, *Future[Result], error) {
	switch {
	case onSuccess == nil && onFailure == nil:
		p := NewPromise[Result]()
		return Blocking(p), p.Future(), nil
	case onSuccess != nil && onFailure != nil:
		return Callbacks(ctx, onSuccess, onFailure), nil, nil
	default:
		file, line := core.Caller(0)
		return nil, nil, core.NewInvalidArgumentError("Callback and errback must be given together.", "", file, line)
	}
}

// Wait blocks on a blocking-mode future.
//
// Errors without a classification are reported as internal SDK errors.
func Wait(f *Future[Result]) (Result, error) {
	res, err := f.Await()
	if err == nil {
		return res, nil
	}
	if core.KindOf(err) == core.KindUnknown {
		return nil, core.NewInternalSDKError(err.Error(), errors.WithStack(err))
	}
	return nil, err
}
