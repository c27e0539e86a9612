// Package client executes management requests against a Couchbase cluster
// through gocbcore's HTTP dispatch, mapping each request onto the cluster's
// RBAC and view REST endpoints.
package client

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/couchbase/gocbcore/v10"
	"github.com/samber/lo"

	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
	"github.com/DrewBradfordXYZ/cbmgmt-go/operations"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultTimeout        = 75 * time.Second
	userAgent             = "cbmgmt-go"
)

// agent is the slice of *gocbcore.Agent the cluster uses.
type agent interface {
	DoHTTPRequest(req *gocbcore.HTTPRequest, cb gocbcore.DoHTTPRequestCallback) (gocbcore.PendingOp, error)
	WaitUntilReady(deadline time.Time, opts gocbcore.WaitUntilReadyOptions, cb gocbcore.WaitUntilReadyCallback) (gocbcore.PendingOp, error)
	Close() error
}

var _ agent = (*gocbcore.Agent)(nil)

// Cluster is an operations.Executor backed by a gocbcore agent.
type Cluster struct {
	agent agent

	logger         *core.Logger
	connectTimeout time.Duration
	timeout        time.Duration
	retryStrategy  gocbcore.RetryStrategy
}

// Option configures a Cluster.
type Option func(*Cluster)

// WithLogger sets the logger for request timing and agent diagnostics.
func WithLogger(l *core.Logger) Option {
	return func(c *Cluster) {
		c.logger = l
	}
}

// WithConnectTimeout sets the agent connect timeout (default 10s).
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Cluster) {
		c.connectTimeout = d
	}
}

// WithDefaultTimeout sets the deadline applied to requests without a timeout (default 75s).
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Cluster) {
		c.timeout = d
	}
}

// WithRetryStrategy sets the retry strategy for idempotent requests.
func WithRetryStrategy(rs gocbcore.RetryStrategy) Option {
	return func(c *Cluster) {
		c.retryStrategy = rs
	}
}

func newCluster(opts []Option) *Cluster {
	c := &Cluster{
		logger:         core.NewNopLogger(),
		connectTimeout: defaultConnectTimeout,
		timeout:        defaultTimeout,
		retryStrategy:  gocbcore.NewBestEffortRetryStrategy(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect creates an agent for connStr authenticating with auth.
func Connect(connStr string, auth gocbcore.AuthProvider, opts ...Option) (*Cluster, error) {
	c := newCluster(opts)

	config := &gocbcore.AgentConfig{
		UserAgent:            userAgent,
		DefaultRetryStrategy: c.retryStrategy,
	}
	if err := config.FromConnStr(connStr); err != nil {
		return nil, errors.Wrap(err, "parse connection string")
	}
	config.SecurityConfig.Auth = auth
	config.KVConfig.ConnectTimeout = c.connectTimeout

	a, err := gocbcore.CreateAgent(config)
	if err != nil {
		return nil, errors.Wrap(err, "create agent")
	}
	c.agent = a
	return c, nil
}

// WaitUntilReady blocks until the management service is reachable, ctx is
// done, or the connect timeout passes.
func (c *Cluster) WaitUntilReady(ctx context.Context) error {
	deadline := time.Now().Add(c.connectTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	ready := make(chan error, 1)
	op, err := c.agent.WaitUntilReady(deadline, gocbcore.WaitUntilReadyOptions{
		ServiceTypes: []gocbcore.ServiceType{gocbcore.MgmtService},
	}, func(_ *gocbcore.WaitUntilReadyResult, err error) {
		ready <- err
	})
	if err != nil {
		return errors.Wrap(err, "wait until ready")
	}

	select {
	case err := <-ready:
		return errors.Wrap(err, "wait until ready")
	case <-ctx.Done():
		op.Cancel()
		return ctx.Err()
	}
}

// Close shuts down the agent.
func (c *Cluster) Close() error {
	return c.agent.Close()
}

// Execute implements operations.Executor. done is called exactly once, on a
// gocbcore goroutine or on a fresh one when the request fails to dispatch.
func (c *Cluster) Execute(req operations.Request, done func(operations.Response)) {
	rt, err := routeFor(req)
	if err != nil {
		if _, ok := core.CodeOf(err); !ok {
			err = core.Coded(core.ErrInvalidArgument, err)
		}
		go done(operations.ErrorResponse(req, core.ErrorContext{Err: err}))
		return
	}

	clientContextID := contextID(req)
	timeout := req.RequestTimeout()
	if timeout <= 0 {
		timeout = c.timeout
	}

	httpReq := &gocbcore.HTTPRequest{
		Service:      rt.service,
		Method:       rt.method,
		Path:         rt.path,
		Body:         rt.body,
		ContentType:  rt.contentType,
		IsIdempotent: rt.idempotent(),
		UniqueID:     clientContextID,
		Deadline:     time.Now().Add(timeout),
	}
	if rt.idempotent() {
		httpReq.RetryStrategy = c.retryStrategy
	}

	start := time.Now()
	_, err = c.agent.DoHTTPRequest(httpReq, func(resp *gocbcore.HTTPResponse, err error) {
		c.logger.Timing(rt.method, rt.path, time.Since(start))
		done(c.complete(req, rt, clientContextID, resp, err))
	})
	if err != nil {
		go done(operations.ErrorResponse(req, transportFailure(rt, clientContextID, err)))
	}
}

func contextID(req operations.Request) string {
	switch r := req.(type) {
	case operations.UpsertDesignDocumentRequest:
		return r.ClientContextID
	case operations.GetDesignDocumentRequest:
		return r.ClientContextID
	case operations.DropDesignDocumentRequest:
		return r.ClientContextID
	case operations.GetAllDesignDocumentsRequest:
		return r.ClientContextID
	default:
		return ""
	}
}

func (c *Cluster) complete(req operations.Request, rt route, clientContextID string, resp *gocbcore.HTTPResponse, err error) operations.Response {
	if err != nil {
		return operations.ErrorResponse(req, transportFailure(rt, clientContextID, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	httpCtx := &core.HTTPContext{
		ClientContextID:  clientContextID,
		Method:           rt.method,
		Path:             rt.path,
		HTTPStatus:       resp.StatusCode,
		HTTPBody:         string(body),
		LastDispatchedTo: resp.Endpoint,
	}
	if err != nil {
		return operations.ErrorResponse(req, core.ErrorContext{
			Err:  core.Coded(core.ErrRequestCanceled, errors.Wrap(err, "read response body")),
			HTTP: httpCtx,
		})
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return failedResponse(req, core.ErrorContext{Err: statusCode(rt, resp.StatusCode), HTTP: httpCtx}, body)
	}

	out, err := decodeBody(req, body)
	if err != nil {
		c.logger.Warn("undecodable management response")
		return operations.ErrorResponse(req, core.ErrorContext{Err: core.Coded(core.ErrParsingFailure, err), HTTP: httpCtx})
	}
	return withContext(out, httpCtx)
}

// withContext attaches the success diagnostics to a decoded response.
func withContext(resp operations.Response, httpCtx *core.HTTPContext) operations.Response {
	h := operations.Header{Ctx: core.ErrorContext{HTTP: httpCtx}}
	switch r := resp.(type) {
	case operations.UpsertUserResponse:
		r.Header = h
		return r
	case operations.GetUserResponse:
		r.Header = h
		return r
	case operations.GetAllUsersResponse:
		r.Header = h
		return r
	case operations.DropUserResponse:
		r.Header = h
		return r
	case operations.GetRolesResponse:
		r.Header = h
		return r
	case operations.UpsertGroupResponse:
		r.Header = h
		return r
	case operations.GetGroupResponse:
		r.Header = h
		return r
	case operations.GetAllGroupsResponse:
		r.Header = h
		return r
	case operations.DropGroupResponse:
		r.Header = h
		return r
	case operations.UpsertDesignDocumentResponse:
		r.Header = h
		return r
	case operations.GetDesignDocumentResponse:
		r.Header = h
		return r
	case operations.DropDesignDocumentResponse:
		r.Header = h
		return r
	case operations.GetAllDesignDocumentsResponse:
		r.Header = h
		return r
	default:
		return resp
	}
}

// transportCode maps a gocbcore dispatch error onto a native error code.
func transportCode(err error) core.ErrorCode {
	switch {
	case errors.Is(err, gocbcore.ErrRequestCanceled):
		return core.ErrRequestCanceled
	case errors.Is(err, gocbcore.ErrAmbiguousTimeout):
		return core.ErrAmbiguousTimeout
	case errors.Is(err, gocbcore.ErrUnambiguousTimeout), errors.Is(err, gocbcore.ErrTimeout):
		return core.ErrUnambiguousTimeout
	case errors.Is(err, gocbcore.ErrServiceNotAvailable):
		return core.ErrServiceNotAvailable
	case errors.Is(err, gocbcore.ErrAuthenticationFailure):
		return core.ErrAuthenticationFailure
	case errors.Is(err, gocbcore.ErrFeatureNotAvailable):
		return core.ErrFeatureNotAvailable
	default:
		return core.ErrInternalServerFailure
	}
}

func transportFailure(rt route, clientContextID string, err error) core.ErrorContext {
	httpCtx := &core.HTTPContext{
		ClientContextID: clientContextID,
		Method:          rt.method,
		Path:            rt.path,
	}
	var httpErr *gocbcore.HTTPError
	if errors.As(err, &httpErr) {
		httpCtx.LastDispatchedTo = httpErr.Endpoint
		httpCtx.RetryAttempts = int(httpErr.RetryAttempts)
		httpCtx.RetryReasons = lo.Map(httpErr.RetryReasons, func(r gocbcore.RetryReason, _ int) string {
			return r.Description()
		})
	}
	return core.ErrorContext{Err: core.Coded(transportCode(err), err), HTTP: httpCtx}
}
