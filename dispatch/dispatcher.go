// Package dispatch turns a tagged operation and its option bundle into a
// native request, submits it with a bound completion, and, in blocking mode,
// waits for the outcome.
package dispatch

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/DrewBradfordXYZ/cbmgmt-go/bridge"
	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
	"github.com/DrewBradfordXYZ/cbmgmt-go/operations"
)

// DefaultTimeout is the management operation timeout used when none is given.
const DefaultTimeout = 75 * time.Second

// Request is one operation submission.
//
// OnSuccess and OnFailure select the delivery mode: both set means async,
// neither means blocking. Setting only one is rejected.
type Request struct {
	Op        Op
	Args      Args
	Timeout   time.Duration
	OnSuccess bridge.SuccessFunc
	OnFailure bridge.FailureFunc
}

// Throttle gates submissions. Acquire is the only point where ctx is honoured.
type Throttle interface {
	Acquire(ctx context.Context) error
}

type noThrottle struct{}

func (noThrottle) Acquire(context.Context) error { return nil }

// Dispatcher submits management operations to an Executor.
type Dispatcher struct {
	executor operations.Executor
	runtime  *bridge.Runtime
	logger   *core.Logger
	timeout  time.Duration
	throttle Throttle
	metrics  *Metrics
	inFlight *atomic.Int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the timeout attached to requests that do not carry their own.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		disp.timeout = d
	}
}

// WithThrottle gates every submission on t.
func WithThrottle(t Throttle) Option {
	return func(d *Dispatcher) {
		d.throttle = t
	}
}

// WithLogger sets the logger. Without it a dispatcher given WithRuntime logs
// through the runtime's logger.
func WithLogger(l *core.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithRuntime sets the runtime whose guard completions acquire.
func WithRuntime(rt *bridge.Runtime) Option {
	return func(d *Dispatcher) {
		d.runtime = rt
	}
}

// WithMetrics sets the prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// New creates a dispatcher submitting to exec.
func New(exec operations.Executor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		executor: exec,
		timeout:  DefaultTimeout,
		throttle: noThrottle{},
		inFlight: atomic.NewInt64(0),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		if d.runtime != nil {
			d.logger = d.runtime.Logger()
		} else {
			d.logger = core.NewNopLogger()
		}
	}
	if d.runtime == nil {
		d.runtime = bridge.NewRuntime(bridge.WithLogger(d.logger))
	}
	if d.metrics == nil {
		d.metrics = NewMetrics(nil)
	}
	return d
}

// Runtime returns the runtime completions run under.
func (d *Dispatcher) Runtime() *bridge.Runtime {
	return d.runtime
}

// InFlight returns the number of submitted operations not yet delivered.
func (d *Dispatcher) InFlight() int64 {
	return d.inFlight.Load()
}

// Submit runs any published operation.
//
// Contract violations (unknown tag, a lone callback, an undecodable option)
// are returned before anything is submitted. In blocking mode Submit waits
// for the outcome; once submitted, the wait is not cancellable. In async mode
// it returns (nil, nil) and the outcome goes to the callbacks.
//
// A blocking Submit made from inside a callback must pass the callback's ctx:
// the guard is then released while Submit waits.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (bridge.Result, error) {
	return d.submit(ctx, req, "")
}

// SubmitUserManagement runs a user management operation.
func (d *Dispatcher) SubmitUserManagement(ctx context.Context, req Request) (bridge.Result, error) {
	return d.submit(ctx, req, FamilyUserManagement)
}

// SubmitViewIndexManagement runs a view index management operation.
func (d *Dispatcher) SubmitViewIndexManagement(ctx context.Context, req Request) (bridge.Result, error) {
	return d.submit(ctx, req, FamilyViewIndexManagement)
}

func unknownOpMessage(family string) string {
	switch family {
	case FamilyUserManagement:
		return msgUnknownUserOp
	case FamilyViewIndexManagement:
		return msgUnknownViewOp
	default:
		return msgUnknownOp
	}
}

func (d *Dispatcher) submit(ctx context.Context, req Request, family string) (bridge.Result, error) {
	entry, ok := operationTable[req.Op]
	if !ok || (family != "" && entry.family != family) {
		file, line := core.Caller(0)
		return nil, core.NewInvalidArgumentError(unknownOpMessage(family), string(req.Op), file, line)
	}

	sink, fut, err := bridge.NewSink(ctx, req.OnSuccess, req.OnFailure)
	if err != nil {
		var argErr *core.InvalidArgumentError
		if errors.As(err, &argErr) {
			argErr.Op = string(req.Op)
		}
		return nil, err
	}

	base := operations.Base{Timeout: req.Timeout}
	if base.Timeout <= 0 {
		base.Timeout = d.timeout
	}
	if entry.viewIndex {
		id, _, err := req.Args.optionalString("client_context_id")
		if err != nil {
			return nil, err
		}
		if id == "" {
			id = uuid.NewString()
		}
		base.ClientContextID = id
	}

	nativeReq, err := entry.request(req.Args, base)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := d.throttle.Acquire(ctx); err != nil {
		return nil, errors.Wrapf(err, "acquire submission slot for %s", req.Op)
	}
	d.logger.Throttled(string(req.Op), time.Since(start))

	completion := &bridge.Completion{
		Op:                 string(req.Op),
		NativeMessage:      entry.nativeMessage,
		BuildMessage:       entry.buildMessage,
		ValidationMessages: entry.validation,
		Build:              entry.result,
		OnDelivered:        d.delivered(req.Op, time.Now()),
	}

	d.inFlight.Inc()
	d.metrics.InFlight.Inc()
	d.metrics.Submitted.WithLabelValues(string(req.Op)).Inc()
	d.logger.Submission(string(req.Op), sink.Mode())

	d.executor.Execute(nativeReq, completion.Bind(d.runtime, sink))

	if fut == nil {
		return nil, nil
	}
	return d.runtime.Wait(ctx, fut)
}

func (d *Dispatcher) delivered(op Op, start time.Time) func(string, bridge.Outcome) {
	return func(mode string, o bridge.Outcome) {
		outcome := "success"
		if f, ok := o.(*bridge.Failure); ok {
			outcome = f.Kind.String()
		}
		d.metrics.Completed.WithLabelValues(string(op), mode, outcome).Inc()
		d.metrics.InFlight.Dec()
		d.logger.Completion(string(op), mode, outcome, time.Since(start))
		d.inFlight.Dec()
	}
}
