package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"github.com/DrewBradfordXYZ/cbmgmt-go/bridge"
	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
	"github.com/DrewBradfordXYZ/cbmgmt-go/internal/memcluster"
	"github.com/DrewBradfordXYZ/cbmgmt-go/operations"
	"github.com/DrewBradfordXYZ/cbmgmt-go/translate"
)

// scripted answers every request with respond, on a new goroutine.
type scripted struct {
	mu       sync.Mutex
	requests []operations.Request
	respond  func(operations.Request) operations.Response
}

func (s *scripted) Execute(req operations.Request, done func(operations.Response)) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	go done(s.respond(req))
}

func (s *scripted) last() operations.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

func succeed(req operations.Request) operations.Response {
	return operations.ErrorResponse(req, core.ErrorContext{})
}

func newMemDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *memcluster.Cluster) {
	t.Helper()
	c, err := memcluster.New(memcluster.WithBuckets("beer-sample"))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return New(c, opts...), c
}

func TestPublishedTags(t *testing.T) {
	assert.Equal(t, []Op{
		"UPSERT_USER", "GET_USER", "GET_ALL_USERS", "DROP_USER", "GET_ROLES",
		"UPSERT_GROUP", "GET_GROUP", "GET_ALL_GROUPS", "DROP_GROUP",
	}, UserManagementOperations)
	assert.Equal(t, []Op{"UPSERT_INDEX", "GET_INDEX", "DROP_INDEX", "GET_ALL_INDEXES"}, ViewIndexManagementOperations)

	for family, ops := range Families {
		for _, op := range ops {
			got, ok := Lookup(op)
			assert.True(t, ok, op)
			assert.Equal(t, family, got, op)
		}
	}
	_, ok := Lookup("FROBNICATE_USER")
	assert.False(t, ok)
}

func TestUnknownTag(t *testing.T) {
	exec := &scripted{respond: succeed}
	d := New(exec)

	var calls atomic.Int32
	onSuccess := func(context.Context, bridge.Result) { calls.Inc() }
	onFailure := func(context.Context, error, core.ErrorInfo) { calls.Inc() }

	tests := []struct {
		name    string
		submit  func(context.Context, Request) (bridge.Result, error)
		message string
	}{
		{"any family", d.Submit, "Unrecognized mgmt operation passed in."},
		{"user family", d.SubmitUserManagement, "Unrecognized user mgmt operation passed in."},
		{"view family", d.SubmitViewIndexManagement, "Unrecognized view index mgmt operation passed in."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, async := range []bool{false, true} {
				req := Request{Op: "FROBNICATE_USER", Args: Args{"name": "x"}}
				if async {
					req.OnSuccess, req.OnFailure = onSuccess, onFailure
				}
				res, err := tt.submit(context.Background(), req)
				assert.Nil(t, res)

				var argErr *core.InvalidArgumentError
				require.ErrorAs(t, err, &argErr)
				assert.Equal(t, tt.message, argErr.Message)
				assert.Equal(t, "FROBNICATE_USER", argErr.Op)
				assert.Equal(t, "dispatch/dispatcher.go", argErr.File)
			}
		})
	}

	assert.Nil(t, exec.last())
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, int64(0), d.InFlight())
}

func TestFamilyMismatchIsUnknown(t *testing.T) {
	d := New(&scripted{respond: succeed})

	_, err := d.SubmitViewIndexManagement(context.Background(), Request{Op: OpGetRoles})
	assert.Equal(t, core.KindInvalidArgument, core.KindOf(err))

	_, err = d.SubmitUserManagement(context.Background(), Request{Op: OpGetAllIndexes})
	assert.Equal(t, core.KindInvalidArgument, core.KindOf(err))
}

func TestLoneCallbackRejected(t *testing.T) {
	exec := &scripted{respond: succeed}
	d := New(exec)

	_, err := d.Submit(context.Background(), Request{Op: OpGetRoles, OnSuccess: func(context.Context, bridge.Result) {}})

	var argErr *core.InvalidArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "GET_ROLES", argErr.Op)
	assert.Nil(t, exec.last())
}

func TestDecodeErrors(t *testing.T) {
	exec := &scripted{respond: succeed}
	d := New(exec)

	tests := []struct {
		name string
		op   Op
		args Args
		key  string
	}{
		{"missing domain", OpGetUser, Args{"username": "alice"}, "domain"},
		{"nil username", OpGetUser, Args{"domain": "local", "username": nil}, "username"},
		{"numeric username", OpDropUser, Args{"domain": "local", "username": 42}, "username"},
		{"user not a mapping", OpUpsertUser, Args{"domain": "local", "user": []string{"alice"}}, "user"},
		{"missing group", OpUpsertGroup, Args{}, "group"},
		{"numeric group name", OpGetGroup, Args{"name": 3.5}, "name"},
		{"missing namespace", OpGetAllIndexes, Args{"bucket_name": "b"}, "name_space"},
		{"missing document name", OpDropIndex, Args{"bucket_name": "b", "name_space": "production"}, "document_name"},
		{"bad client context id", OpGetAllIndexes, Args{"bucket_name": "b", "name_space": "production", "client_context_id": 9}, "client_context_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Submit(context.Background(), Request{Op: tt.op, Args: tt.args})

			var decodeErr *core.DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, tt.key, decodeErr.Key)
			assert.True(t, core.IsContractError(err))
		})
	}

	assert.Nil(t, exec.last())
}

func TestRequestConstruction(t *testing.T) {
	exec := &scripted{respond: succeed}
	d := New(exec, WithTimeout(3*time.Second))
	ctx := context.Background()

	_, err := d.Submit(ctx, Request{Op: OpUpsertUser, Args: Args{
		"domain": "external",
		"user": map[string]any{
			"username": "alice",
			"name":     "Alice",
			"roles":    []any{map[string]any{"name": "data_reader", "bucket": "b"}},
			"groups":   []any{"g2", "g1", "g2"},
		},
	}})
	require.NoError(t, err)
	upsert := exec.last().(operations.UpsertUserRequest)
	assert.Equal(t, operations.AuthDomainExternal, upsert.Domain)
	assert.Equal(t, "Alice", *upsert.User.DisplayName)
	assert.Equal(t, []string{"g1", "g2"}, upsert.User.Groups)
	assert.Equal(t, "b", *upsert.User.Roles[0].Bucket)
	assert.Equal(t, 3*time.Second, upsert.Timeout)
	assert.Empty(t, upsert.ClientContextID)

	_, err = d.Submit(ctx, Request{Op: OpGetUser, Timeout: time.Second, Args: Args{"domain": "ldap", "username": "bob"}})
	require.NoError(t, err)
	get := exec.last().(operations.GetUserRequest)
	assert.Equal(t, operations.AuthDomainLocal, get.Domain)
	assert.Equal(t, time.Second, get.Timeout)

	_, err = d.Submit(ctx, Request{Op: OpUpsertGroup, Args: Args{"group": `{"name":"ops","roles":[{"name":"admin"}]}`}})
	require.NoError(t, err)
	group := exec.last().(operations.UpsertGroupRequest)
	assert.Equal(t, "ops", group.Group.Name)
	assert.Equal(t, []operations.Role{{Name: "admin"}}, group.Group.Roles)

	_, err = d.Submit(ctx, Request{Op: OpGetIndex, Args: Args{
		"bucket_name": "beer-sample", "document_name": "beers", "name_space": "Production", "client_context_id": "my-ctx",
	}})
	require.NoError(t, err)
	index := exec.last().(operations.GetDesignDocumentRequest)
	assert.Equal(t, operations.NamespaceDevelopment, index.Namespace)
	assert.Equal(t, "my-ctx", index.ClientContextID)

	_, err = d.Submit(ctx, Request{Op: OpDropIndex, Args: Args{
		"bucket_name": "beer-sample", "document_name": "beers", "name_space": "production",
	}})
	require.NoError(t, err)
	drop := exec.last().(operations.DropDesignDocumentRequest)
	assert.Equal(t, operations.NamespaceProduction, drop.Namespace)
	assert.Len(t, drop.ClientContextID, 36)

	_, err = d.Submit(ctx, Request{Op: OpUpsertIndex, Args: Args{
		"bucket_name":     "beer-sample",
		"design_document": map[string]any{"name": "beers", "name_space": "production", "views": map[string]any{"v": map[string]any{"map": "m"}}},
	}})
	require.NoError(t, err)
	up := exec.last().(operations.UpsertDesignDocumentRequest)
	assert.Equal(t, "beers", up.Document.Name)
	assert.Equal(t, "m", *up.Document.Views["v"].Map)
}

func TestBlockingGetUserNotFound(t *testing.T) {
	d, _ := newMemDispatcher(t)

	res, err := d.Submit(context.Background(), Request{Op: OpGetUser, Args: Args{"domain": "local", "username": "ghost"}})
	assert.Nil(t, res)

	var httpErr *core.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, core.KindHTTPError, httpErr.Kind)
	assert.Equal(t, "Error doing user mgmt operation.", httpErr.Message)
	assert.False(t, httpErr.Context.IsZero())
	assert.Equal(t, 404, httpErr.Context.HTTPStatus)
	assert.Equal(t, "/settings/rbac/users/local/ghost", httpErr.Context.Path)
	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, core.CategoryManagement, core.CategoryOf(err))
}

func TestAsyncGroupUpsertValidationMessages(t *testing.T) {
	d, cluster := newMemDispatcher(t)
	cluster.InjectFault("upsert_group",
		core.ErrorContext{Err: core.ErrInvalidArgument, HTTP: &core.HTTPContext{Method: "PUT", Path: "/settings/rbac/groups/", HTTPStatus: 400}},
		"name required", "ldap ref invalid")

	var successes, failures atomic.Int32
	var gotErr error
	var gotInfo core.ErrorInfo
	done := make(chan struct{})

	res, err := d.Submit(context.Background(), Request{
		Op:        OpUpsertGroup,
		Args:      Args{"group": map[string]any{"name": ""}},
		OnSuccess: func(context.Context, bridge.Result) { successes.Inc() },
		OnFailure: func(_ context.Context, err error, info core.ErrorInfo) {
			failures.Inc()
			gotErr, gotInfo = err, info
			close(done)
		},
	})
	require.NoError(t, err)
	assert.Nil(t, res)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("errback not invoked")
	}

	assert.Equal(t, int32(0), successes.Load())
	assert.Equal(t, int32(1), failures.Load())
	assert.Equal(t, []string{"name required", "ldap ref invalid"}, gotInfo.ErrorMessages)
	assert.Equal(t, "Error doing user mgmt group upsert operation.", gotInfo.Message)
	assert.Equal(t, core.KindHTTPError, gotInfo.Kind)
	assert.NotEmpty(t, gotInfo.File)
	assert.NotZero(t, gotInfo.Line)
	var nativeErr *core.NativeError
	require.ErrorAs(t, gotErr, &nativeErr)
	assert.True(t, errors.Is(gotErr, core.ErrInvalidArgument))
}

func TestBlockingRoundTrip(t *testing.T) {
	d, _ := newMemDispatcher(t)
	ctx := context.Background()

	_, err := d.Submit(ctx, Request{Op: OpUpsertGroup, Args: Args{"group": map[string]any{
		"name":        "readers",
		"description": "read only",
		"roles":       []any{map[string]any{"name": "data_reader", "bucket": "beer-sample"}},
	}}})
	require.NoError(t, err)

	res, err := d.Submit(ctx, Request{Op: OpGetGroup, Args: Args{"name": "readers"}})
	require.NoError(t, err)
	group := res["group"].(map[string]any)
	assert.Equal(t, "readers", group["name"])
	assert.Equal(t, "read only", group["description"])
	assert.NotContains(t, group, "ldap_group_reference")
	assert.Equal(t, []any{map[string]any{"name": "data_reader", "bucket_name": "beer-sample"}}, group["roles"])

	_, err = d.Submit(ctx, Request{Op: OpUpsertUser, Args: Args{"domain": "local", "user": map[string]any{
		"username": "alice",
		"password": "password",
		"groups":   []any{"readers", "readers"},
	}}})
	require.NoError(t, err)

	res, err = d.Submit(ctx, Request{Op: OpGetUser, Args: Args{"domain": "local", "username": "alice"}})
	require.NoError(t, err)
	uam := res["user_and_metadata"].(map[string]any)
	assert.Equal(t, "local", uam["domain"])
	assert.Equal(t, translate.NewSet("readers"), uam["user"].(map[string]any)["groups"])
	assert.Len(t, uam["effective_roles"], 1)
	assert.Contains(t, uam, "password_changed")

	res, err = d.Submit(ctx, Request{Op: OpGetAllUsers, Args: Args{"domain": "local"}})
	require.NoError(t, err)
	assert.Len(t, res["users"], 1)

	res, err = d.Submit(ctx, Request{Op: OpGetRoles})
	require.NoError(t, err)
	roles := res["roles"].([]any)
	assert.Len(t, roles, len(memcluster.DefaultRoles))
	assert.Contains(t, roles[0], "display_name")

	res, err = d.Submit(ctx, Request{Op: OpGetAllGroups})
	require.NoError(t, err)
	assert.Len(t, res["groups"], 1)

	res, err = d.Submit(ctx, Request{Op: OpDropUser, Args: Args{"domain": "local", "username": "alice"}})
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = d.Submit(ctx, Request{Op: OpDropGroup, Args: Args{"name": "readers"}})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestViewIndexRoundTrip(t *testing.T) {
	d, _ := newMemDispatcher(t)
	ctx := context.Background()

	_, err := d.SubmitViewIndexManagement(ctx, Request{Op: OpUpsertIndex, Args: Args{
		"bucket_name": "beer-sample",
		"design_document": map[string]any{
			"name":       "beers",
			"name_space": "production",
			"views":      map[string]any{"by_name": map[string]any{"map": "function (doc) { emit(doc.name) }", "reduce": "_count"}},
		},
	}})
	require.NoError(t, err)

	res, err := d.SubmitViewIndexManagement(ctx, Request{Op: OpGetIndex, Args: Args{
		"bucket_name": "beer-sample", "document_name": "beers", "name_space": "production",
	}})
	require.NoError(t, err)
	doc := res["design_document"].(map[string]any)
	assert.Equal(t, "production", doc["name_space"])
	assert.Equal(t, map[string]any{"by_name": map[string]any{"map": "function (doc) { emit(doc.name) }", "reduce": "_count"}}, doc["views"])

	res, err = d.SubmitViewIndexManagement(ctx, Request{Op: OpGetAllIndexes, Args: Args{"bucket_name": "beer-sample", "name_space": "production"}})
	require.NoError(t, err)
	assert.Len(t, res["design_documents"], 1)

	_, err = d.SubmitViewIndexManagement(ctx, Request{Op: OpDropIndex, Args: Args{
		"bucket_name": "beer-sample", "document_name": "beers", "name_space": "production",
	}})
	require.NoError(t, err)

	_, err = d.SubmitViewIndexManagement(ctx, Request{Op: OpGetIndex, Args: Args{
		"bucket_name": "beer-sample", "document_name": "beers", "name_space": "production",
	}})
	var httpErr *core.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "Error doing view index mgmt operation.", httpErr.Message)
	assert.True(t, errors.Is(err, core.ErrDesignDocumentNotFound))
	assert.Len(t, httpErr.Context.ClientContextID, 36)
}

func TestUnableToBuildResult(t *testing.T) {
	bad := string([]byte{0xff})
	exec := &scripted{respond: func(req operations.Request) operations.Response {
		return operations.GetGroupResponse{Group: operations.Group{Name: bad}}
	}}
	d := New(exec)

	_, err := d.Submit(context.Background(), Request{Op: OpGetGroup, Args: Args{"name": "x"}})
	assert.Equal(t, core.KindUnableToBuildResult, core.KindOf(err))
	assert.True(t, errors.Is(err, translate.ErrUnrepresentable))

	info := make(chan core.ErrorInfo, 1)
	_, err = d.Submit(context.Background(), Request{
		Op:        OpGetGroup,
		Args:      Args{"name": "x"},
		OnSuccess: func(context.Context, bridge.Result) {},
		OnFailure: func(_ context.Context, _ error, i core.ErrorInfo) { info <- i },
	})
	require.NoError(t, err)
	got := <-info
	assert.Equal(t, core.KindUnableToBuildResult, got.Kind)
	assert.Equal(t, "User mgmt operation error.", got.Message)
}

func TestWrongResponseTypeIsUnableToBuild(t *testing.T) {
	exec := &scripted{respond: func(req operations.Request) operations.Response {
		return operations.DropGroupResponse{}
	}}
	d := New(exec)

	_, err := d.Submit(context.Background(), Request{Op: OpGetGroup, Args: Args{"name": "x"}})
	assert.Equal(t, core.KindUnableToBuildResult, core.KindOf(err))
}

func TestExactlyOnceDelivery(t *testing.T) {
	const n = 200
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	d, cluster := newMemDispatcher(t, WithMetrics(metrics))

	var delivered [n]atomic.Int32
	var asyncWG sync.WaitGroup
	g, ctx := errgroup.WithContext(context.Background())

	for i := 0; i < n; i++ {
		i := i
		name := fmt.Sprintf("group-%03d", i)
		if i%2 == 0 {
			g.Go(func() error {
				_, err := d.Submit(ctx, Request{Op: OpGetGroup, Args: Args{"name": name}})
				delivered[i].Inc()
				if !core.IsNotFound(err) {
					return errors.Newf("op %d: unexpected error %v", i, err)
				}
				return nil
			})
			continue
		}
		asyncWG.Add(1)
		g.Go(func() error {
			_, err := d.Submit(ctx, Request{
				Op:   OpUpsertGroup,
				Args: Args{"group": map[string]any{"name": name}},
				OnSuccess: func(context.Context, bridge.Result) {
					delivered[i].Inc()
					asyncWG.Done()
				},
				OnFailure: func(context.Context, error, core.ErrorInfo) {
					delivered[i].Inc()
					asyncWG.Done()
				},
			})
			return err
		})
	}

	require.NoError(t, g.Wait())
	asyncWG.Wait()

	for i := range delivered {
		assert.Equal(t, int32(1), delivered[i].Load(), "operation %d", i)
	}
	assert.Equal(t, int64(n), cluster.Executed())
	require.Eventually(t, func() bool { return d.InFlight() == 0 }, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, float64(n/2), testutil.ToFloat64(metrics.Submitted.WithLabelValues("GET_GROUP")))
	assert.Equal(t, float64(n/2), testutil.ToFloat64(metrics.Completed.WithLabelValues("GET_GROUP", bridge.ModeBlocking, "http_error")))
	assert.Equal(t, float64(n/2), testutil.ToFloat64(metrics.Completed.WithLabelValues("UPSERT_GROUP", bridge.ModeAsync, "success")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))
}

type blockingThrottle struct{}

func (blockingThrottle) Acquire(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestThrottleHonoursContext(t *testing.T) {
	exec := &scripted{respond: succeed}
	d := New(exec, WithThrottle(blockingThrottle{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := d.Submit(ctx, Request{Op: OpGetRoles})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Nil(t, exec.last())
	assert.Equal(t, int64(0), d.InFlight())
}

func TestNestedBlockingSubmitFromCallback(t *testing.T) {
	d, _ := newMemDispatcher(t)

	type nested struct {
		res bridge.Result
		err error
	}
	done := make(chan nested, 1)
	_, err := d.Submit(context.Background(), Request{
		Op: OpGetAllGroups,
		OnSuccess: func(ctx context.Context, _ bridge.Result) {
			res, err := d.Submit(ctx, Request{Op: OpGetRoles})
			done <- nested{res: res, err: err}
		},
		OnFailure: func(_ context.Context, err error, _ core.ErrorInfo) { done <- nested{err: err} },
	})
	require.NoError(t, err)

	select {
	case n := <-done:
		require.NoError(t, n.err)
		assert.NotEmpty(t, n.res["roles"])
	case <-time.After(5 * time.Second):
		t.Fatalf("nested blocking submit did not return; in flight=%d", d.InFlight())
	}
	require.Eventually(t, func() bool { return d.InFlight() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHostHeldGuardReleasedWhileWaiting(t *testing.T) {
	guard := &sync.Mutex{}
	d, _ := newMemDispatcher(t, WithRuntime(bridge.NewRuntime(bridge.WithGuard(guard))))

	type result struct {
		res bridge.Result
		err error
	}
	done := make(chan result, 1)
	go func() {
		guard.Lock()
		defer guard.Unlock()
		res, err := d.Submit(bridge.WithGuardHeld(context.Background()), Request{Op: OpGetRoles})
		done <- result{res, err}
	}()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.NotEmpty(t, r.res["roles"])
	case <-time.After(5 * time.Second):
		t.Fatal("blocking submit with a held guard did not return")
	}
}

func TestDispatcherInheritsRuntimeLogger(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	logger := core.NewLoggerFrom(zap.New(obs), true)
	d, _ := newMemDispatcher(t, WithRuntime(bridge.NewRuntime(bridge.WithLogger(logger))))

	_, err := d.Submit(context.Background(), Request{Op: OpGetRoles})
	require.NoError(t, err)

	assert.Same(t, logger, d.Runtime().Logger())
	assert.Equal(t, 1, logs.FilterMessage("submitted management operation").Len())
	assert.Eventually(t, func() bool {
		return logs.FilterMessage("delivered management operation").Len() == 1
	}, time.Second, 5*time.Millisecond)
}
