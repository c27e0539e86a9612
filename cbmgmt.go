// Package cbmgmt submits Couchbase user and view index management operations
// and delivers each outcome exactly once, either to a blocking caller or to a
// success/failure callback pair.
//
// Blocking usage:
//
//	c, err := cbmgmt.New("couchbase://10.0.0.1", cbmgmt.WithCredentials("Administrator", "password"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	res, err := c.Submit(ctx, cbmgmt.Request{
//	    Op:   cbmgmt.OpGetUser,
//	    Args: cbmgmt.Args{"domain": "local", "username": "alice"},
//	})
//
// Async usage passes both callbacks; Submit returns immediately. A callback
// that makes a blocking Submit passes its own ctx along:
//
//	_, err := c.Submit(ctx, cbmgmt.Request{
//	    Op:        cbmgmt.OpGetAllGroups,
//	    OnSuccess: func(ctx context.Context, res cbmgmt.Result) { ... },
//	    OnFailure: func(ctx context.Context, err error, info cbmgmt.ErrorInfo) { ... },
//	})
//
// With proactive throttling and metrics:
//
//	c, err := cbmgmt.New(connStr,
//	    cbmgmt.WithCredentials(user, pass),
//	    cbmgmt.WithProactiveThrottle(100), // 100 submissions per 10s
//	    cbmgmt.WithMetricsRegisterer(prometheus.DefaultRegisterer),
//	)
package cbmgmt

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/couchbase/gocbcore/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/DrewBradfordXYZ/cbmgmt-go/auth"
	"github.com/DrewBradfordXYZ/cbmgmt-go/bridge"
	"github.com/DrewBradfordXYZ/cbmgmt-go/client"
	"github.com/DrewBradfordXYZ/cbmgmt-go/config"
	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
	"github.com/DrewBradfordXYZ/cbmgmt-go/dispatch"
	"github.com/DrewBradfordXYZ/cbmgmt-go/operations"
)

// Re-export types for convenience
type (
	Request   = dispatch.Request
	Args      = dispatch.Args
	Op        = dispatch.Op
	Result    = bridge.Result
	ErrorInfo = core.ErrorInfo
	Throttle  = dispatch.Throttle

	// Error types
	MgmtError            = core.MgmtError
	HTTPError            = core.HTTPError
	NativeError          = core.NativeError
	InvalidArgumentError = core.InvalidArgumentError
	DecodeError          = core.DecodeError
	ErrorKind            = core.ErrorKind
	ErrorCode            = core.ErrorCode
)

// Published operation tags.
const (
	OpUpsertUser    = dispatch.OpUpsertUser
	OpGetUser       = dispatch.OpGetUser
	OpGetAllUsers   = dispatch.OpGetAllUsers
	OpDropUser      = dispatch.OpDropUser
	OpGetRoles      = dispatch.OpGetRoles
	OpUpsertGroup   = dispatch.OpUpsertGroup
	OpGetGroup      = dispatch.OpGetGroup
	OpGetAllGroups  = dispatch.OpGetAllGroups
	OpDropGroup     = dispatch.OpDropGroup
	OpUpsertIndex   = dispatch.OpUpsertIndex
	OpGetIndex      = dispatch.OpGetIndex
	OpDropIndex     = dispatch.OpDropIndex
	OpGetAllIndexes = dispatch.OpGetAllIndexes
)

// Helper functions re-exported from core
var (
	// IsNotFound reports whether err is a user, group, design document or view not-found error.
	IsNotFound = core.IsNotFound

	// KindOf returns the classified kind of err.
	KindOf = core.KindOf

	// CodeOf returns the native error code in err's chain.
	CodeOf = core.CodeOf

	// WithGuardHeld marks ctx for a caller that holds the guard set with
	// WithGuard; a blocking Submit with that ctx releases the guard while it waits.
	WithGuardHeld = bridge.WithGuardHeld
)

// Client submits management operations.
type Client struct {
	dispatcher *dispatch.Dispatcher
	cluster    *client.Cluster
	logger     *core.Logger
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	timeout        time.Duration
	connectTimeout time.Duration
	debug          bool
	logger         *core.Logger
	guard          sync.Locker
	throttle       dispatch.Throttle
	registerer     prometheus.Registerer
	unhandled      bridge.UnhandledErrorFunc
	auth           gocbcore.AuthProvider
	authErr        error
}

// WithTimeout sets the timeout for operations that do not carry their own (default 75s).
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithConnectTimeout sets the cluster connect timeout (default 10s).
func WithConnectTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.connectTimeout = d
	}
}

// WithDebug enables debug logging, including gocbcore's own diagnostics.
func WithDebug(enabled bool) Option {
	return func(c *clientConfig) {
		c.debug = enabled
	}
}

// WithLogger sets the logger. It takes precedence over WithDebug.
func WithLogger(l *core.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithGuard sets the lock held while outcomes are delivered.
func WithGuard(g sync.Locker) Option {
	return func(c *clientConfig) {
		c.guard = g
	}
}

// WithThrottle gates every submission on t.
func WithThrottle(t Throttle) Option {
	return func(c *clientConfig) {
		c.throttle = t
	}
}

// WithProactiveThrottle admits at most perTenSeconds submissions in any 10 second window.
func WithProactiveThrottle(perTenSeconds int) Option {
	return func(c *clientConfig) {
		c.throttle = client.NewSlidingWindowThrottle(perTenSeconds, 10*time.Second)
	}
}

// WithRateLimit paces submissions at rate per second with bursts up to burst.
// Non-positive values fall back to 10 per second and a burst of 1.
func WithRateLimit(rate float64, burst int) Option {
	return func(c *clientConfig) {
		c.throttle = client.NewTokenBucket(rate, burst)
	}
}

// WithMetricsRegisterer registers the dispatcher's prometheus collectors with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *clientConfig) {
		c.registerer = reg
	}
}

// WithUnhandledErrorFunc receives panics raised by completion callbacks.
func WithUnhandledErrorFunc(fn bridge.UnhandledErrorFunc) Option {
	return func(c *clientConfig) {
		c.unhandled = fn
	}
}

// WithCredentials authenticates with an RBAC username and password.
func WithCredentials(username, password string) Option {
	return func(c *clientConfig) {
		c.auth = auth.NewPasswordProvider(username, password)
	}
}

// WithCertificate authenticates with a client certificate.
func WithCertificate(certFile, keyFile string) Option {
	return func(c *clientConfig) {
		p, err := auth.NewCertificateProvider(certFile, keyFile)
		c.auth, c.authErr = p, err
	}
}

// WithAuthProvider authenticates with any gocbcore provider, e.g. auth.NewRotatingProvider.
func WithAuthProvider(p gocbcore.AuthProvider) Option {
	return func(c *clientConfig) {
		c.auth = p
	}
}

func resolve(opts []Option) *clientConfig {
	cfg := &clientConfig{timeout: dispatch.DefaultTimeout}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = core.NewLogger(cfg.debug)
	}
	return cfg
}

func newDispatcher(exec operations.Executor, cfg *clientConfig) *dispatch.Dispatcher {
	rtOpts := []bridge.RuntimeOption{bridge.WithLogger(cfg.logger.Named("bridge"))}
	if cfg.guard != nil {
		rtOpts = append(rtOpts, bridge.WithGuard(cfg.guard))
	}
	if cfg.unhandled != nil {
		rtOpts = append(rtOpts, bridge.WithUnhandledErrorFunc(cfg.unhandled))
	}

	dOpts := []dispatch.Option{
		dispatch.WithTimeout(cfg.timeout),
		dispatch.WithLogger(cfg.logger.Named("dispatch")),
		dispatch.WithRuntime(bridge.NewRuntime(rtOpts...)),
		dispatch.WithMetrics(dispatch.NewMetrics(cfg.registerer)),
	}
	if cfg.throttle != nil {
		dOpts = append(dOpts, dispatch.WithThrottle(cfg.throttle))
	}
	return dispatch.New(exec, dOpts...)
}

// New connects to the cluster at connStr.
func New(connStr string, opts ...Option) (*Client, error) {
	cfg := resolve(opts)
	if cfg.authErr != nil {
		return nil, cfg.authErr
	}
	if cfg.auth == nil {
		return nil, errors.New("no credentials configured; use WithCredentials, WithCertificate or WithAuthProvider")
	}
	if cfg.debug {
		client.InstallLogger(cfg.logger)
	}

	clusterOpts := []client.Option{
		client.WithLogger(cfg.logger.Named("client")),
		client.WithDefaultTimeout(cfg.timeout),
	}
	if cfg.connectTimeout > 0 {
		clusterOpts = append(clusterOpts, client.WithConnectTimeout(cfg.connectTimeout))
	}
	cluster, err := client.Connect(connStr, cfg.auth, clusterOpts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		dispatcher: newDispatcher(cluster, cfg),
		cluster:    cluster,
		logger:     cfg.logger,
	}, nil
}

// NewFromConfig connects using loaded configuration. opts are applied after it.
func NewFromConfig(c *config.Config, opts ...Option) (*Client, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	base := []Option{
		WithTimeout(c.Timeout),
		WithConnectTimeout(c.ConnectTimeout),
		WithDebug(c.Debug),
	}
	if c.CertFile != "" {
		base = append(base, WithCertificate(c.CertFile, c.KeyFile))
	} else {
		base = append(base, WithCredentials(c.Username, c.Password))
	}
	if c.Throttle > 0 {
		base = append(base, WithProactiveThrottle(c.Throttle))
	}
	return New(c.ConnStr, append(base, opts...)...)
}

// NewWithExecutor submits to exec instead of a cluster connection.
func NewWithExecutor(exec operations.Executor, opts ...Option) *Client {
	cfg := resolve(opts)
	return &Client{
		dispatcher: newDispatcher(exec, cfg),
		logger:     cfg.logger,
	}
}

// WaitUntilReady blocks until the cluster's management service is reachable.
// It returns nil immediately for executor-backed clients.
func (c *Client) WaitUntilReady(ctx context.Context) error {
	if c.cluster == nil {
		return nil
	}
	return c.cluster.WaitUntilReady(ctx)
}

// Submit runs any published operation. See dispatch.Dispatcher.Submit.
func (c *Client) Submit(ctx context.Context, req Request) (Result, error) {
	return c.dispatcher.Submit(ctx, req)
}

// SubmitUserManagement runs a user management operation.
func (c *Client) SubmitUserManagement(ctx context.Context, req Request) (Result, error) {
	return c.dispatcher.SubmitUserManagement(ctx, req)
}

// SubmitViewIndexManagement runs a view index management operation.
func (c *Client) SubmitViewIndexManagement(ctx context.Context, req Request) (Result, error) {
	return c.dispatcher.SubmitViewIndexManagement(ctx, req)
}

// InFlight returns the number of submitted operations not yet delivered.
func (c *Client) InFlight() int64 {
	return c.dispatcher.InFlight()
}

// Close releases the cluster connection and flushes the logger.
func (c *Client) Close() error {
	var err error
	if c.cluster != nil {
		err = c.cluster.Close()
	}
	_ = c.logger.Sync()
	return err
}
