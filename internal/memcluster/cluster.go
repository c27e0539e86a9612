// Package memcluster is an in-process native client that executes management
// operations against in-memory state on an ants worker pool.
//
// It completes every request exactly once from a pool goroutine, reports
// failures with the same codes and HTTP diagnostics a real cluster produces,
// and supports fault injection for exercising error paths.
package memcluster

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
	"github.com/DrewBradfordXYZ/cbmgmt-go/operations"
)

// DefaultRoles is the role catalogue a new cluster starts with.
var DefaultRoles = []operations.RoleAndDescription{
	{Role: operations.Role{Name: "admin"}, DisplayName: "Full Admin", Description: "Can manage all cluster features."},
	{Role: operations.Role{Name: "ro_admin"}, DisplayName: "Read-Only Admin", Description: "Can view all cluster statistics."},
	{Role: operations.Role{Name: "cluster_admin"}, DisplayName: "Cluster Admin", Description: "Can manage all cluster features except security."},
	{Role: operations.Role{Name: "bucket_admin", Bucket: lo.ToPtr("*")}, DisplayName: "Bucket Admin", Description: "Can manage ALL bucket features for a given bucket."},
	{Role: operations.Role{Name: "data_reader", Bucket: lo.ToPtr("*"), Scope: lo.ToPtr("*"), Collection: lo.ToPtr("*")}, DisplayName: "Data Reader", Description: "Can read data from a given bucket, scope or collection."},
	{Role: operations.Role{Name: "data_writer", Bucket: lo.ToPtr("*"), Scope: lo.ToPtr("*"), Collection: lo.ToPtr("*")}, DisplayName: "Data Writer", Description: "Can write data to a given bucket, scope or collection."},
	{Role: operations.Role{Name: "views_admin", Bucket: lo.ToPtr("*")}, DisplayName: "Views Admin", Description: "Can create and manage views of a given bucket."},
	{Role: operations.Role{Name: "views_reader", Bucket: lo.ToPtr("*")}, DisplayName: "Views Reader", Description: "Can read data from the views of a given bucket."},
}

type fault struct {
	ctx      core.ErrorContext
	messages []string
}

// Cluster is an in-memory management endpoint.
type Cluster struct {
	pool    *ants.Pool
	logger  *core.Logger
	latency time.Duration
	poolCap int

	mu      sync.Mutex
	users   map[operations.AuthDomain]map[string]operations.UserAndMetadata
	groups  map[string]operations.Group
	roles   []operations.RoleAndDescription
	buckets map[string]map[string]operations.DesignDocument
	faults  map[string][]fault

	executed *atomic.Int64
}

// Option configures a Cluster.
type Option func(*Cluster)

// WithPoolSize sets the number of worker goroutines.
func WithPoolSize(n int) Option {
	return func(c *Cluster) {
		c.poolCap = n
	}
}

// WithLatency delays every completion by d.
func WithLatency(d time.Duration) Option {
	return func(c *Cluster) {
		c.latency = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *core.Logger) Option {
	return func(c *Cluster) {
		c.logger = l
	}
}

// WithBuckets creates the named buckets.
func WithBuckets(names ...string) Option {
	return func(c *Cluster) {
		for _, name := range names {
			c.buckets[name] = map[string]operations.DesignDocument{}
		}
	}
}

// New creates a cluster with the default role catalogue and no users.
func New(opts ...Option) (*Cluster, error) {
	c := &Cluster{
		logger:   core.NewNopLogger(),
		poolCap:  8,
		users:    map[operations.AuthDomain]map[string]operations.UserAndMetadata{},
		groups:   map[string]operations.Group{},
		roles:    append([]operations.RoleAndDescription(nil), DefaultRoles...),
		buckets:  map[string]map[string]operations.DesignDocument{},
		faults:   map[string][]fault{},
		executed: atomic.NewInt64(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	pool, err := ants.NewPool(c.poolCap, ants.WithPreAlloc(false))
	if err != nil {
		return nil, errors.Wrap(err, "create worker pool")
	}
	c.pool = pool
	return c, nil
}

// Close releases the worker pool. Requests executed afterwards fail with request_canceled.
func (c *Cluster) Close() {
	c.pool.Release()
}

// Executed returns the number of completions delivered.
func (c *Cluster) Executed() int64 {
	return c.executed.Load()
}

// InjectFault makes the next request for operation (e.g. "upsert_group") fail
// with ctx, carrying messages on upsert responses.
func (c *Cluster) InjectFault(operation string, ctx core.ErrorContext, messages ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults[operation] = append(c.faults[operation], fault{ctx: ctx, messages: messages})
}

// Execute runs req on the worker pool and calls done exactly once.
func (c *Cluster) Execute(req operations.Request, done func(operations.Response)) {
	task := func() {
		if c.latency > 0 {
			time.Sleep(c.latency)
		}
		resp := c.handle(req)
		c.executed.Inc()
		done(resp)
	}
	if err := c.pool.Submit(task); err != nil {
		c.logger.Warn("worker pool rejected request", zap.String("operation", req.Operation()), zap.Error(err))
		go func() {
			c.executed.Inc()
			done(operations.ErrorResponse(req, core.ErrorContext{Err: core.Coded(core.ErrRequestCanceled, err)}))
		}()
	}
}

func (c *Cluster) takeFault(operation string) (fault, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue := c.faults[operation]
	if len(queue) == 0 {
		return fault{}, false
	}
	c.faults[operation] = queue[1:]
	return queue[0], true
}

func (c *Cluster) handle(req operations.Request) operations.Response {
	if f, ok := c.takeFault(req.Operation()); ok {
		resp := operations.ErrorResponse(req, f.ctx)
		switch r := resp.(type) {
		case operations.UpsertUserResponse:
			r.Errors = f.messages
			return r
		case operations.UpsertGroupResponse:
			r.Errors = f.messages
			return r
		}
		return resp
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch r := req.(type) {
	case operations.UpsertUserRequest:
		return c.upsertUser(r)
	case operations.GetUserRequest:
		return c.getUser(r)
	case operations.GetAllUsersRequest:
		return c.getAllUsers(r)
	case operations.DropUserRequest:
		return c.dropUser(r)
	case operations.GetRolesRequest:
		return operations.GetRolesResponse{Roles: append([]operations.RoleAndDescription(nil), c.roles...)}
	case operations.UpsertGroupRequest:
		return c.upsertGroup(r)
	case operations.GetGroupRequest:
		return c.getGroup(r)
	case operations.GetAllGroupsRequest:
		return c.getAllGroups()
	case operations.DropGroupRequest:
		return c.dropGroup(r)
	case operations.UpsertDesignDocumentRequest:
		return c.upsertDesignDocument(r)
	case operations.GetDesignDocumentRequest:
		return c.getDesignDocument(r)
	case operations.DropDesignDocumentRequest:
		return c.dropDesignDocument(r)
	case operations.GetAllDesignDocumentsRequest:
		return c.getAllDesignDocuments(r)
	default:
		return operations.ErrorResponse(req, core.ErrorContext{Err: core.ErrUnsupportedOperation})
	}
}

func httpFailure(err error, method, path string, status int, body string, clientContextID string) core.ErrorContext {
	return core.ErrorContext{
		Err: err,
		HTTP: &core.HTTPContext{
			ClientContextID:    clientContextID,
			Method:             method,
			Path:               path,
			HTTPStatus:         status,
			HTTPBody:           body,
			LastDispatchedTo:   "127.0.0.1:8091",
			LastDispatchedFrom: "127.0.0.1:0",
		},
	}
}

func domainName(d operations.AuthDomain) string {
	if d == operations.AuthDomainExternal {
		return "external"
	}
	return "local"
}

func userPath(d operations.AuthDomain, username string) string {
	return fmt.Sprintf("/settings/rbac/users/%s/%s", domainName(d), username)
}

// unknownRoles returns the formatted roles not present in the catalogue.
func (c *Cluster) unknownRoles(roles []operations.Role) []string {
	var unknown []string
	for _, r := range roles {
		if !lo.ContainsBy(c.roles, func(known operations.RoleAndDescription) bool { return known.Name == r.Name }) {
			unknown = append(unknown, r.String())
		}
	}
	return unknown
}

func rolesMessage(unknown []string) string {
	return "roles - Cannot assign roles to user because the following roles are unknown, malformed or role parameters are undefined: [" +
		strings.Join(unknown, ",") + "]"
}

func (c *Cluster) upsertUser(r operations.UpsertUserRequest) operations.Response {
	path := userPath(r.Domain, r.User.Username)
	var messages []string
	if r.User.Username == "" {
		messages = append(messages, "username - Username must not be empty")
	}
	if unknown := c.unknownRoles(r.User.Roles); len(unknown) > 0 {
		messages = append(messages, rolesMessage(unknown))
	}
	if r.Domain == operations.AuthDomainLocal && r.User.Password != nil && len(*r.User.Password) < 6 {
		messages = append(messages, "password - The password must be at least 6 characters long.")
	}
	if len(messages) > 0 {
		return operations.UpsertUserResponse{
			Header: operations.Header{Ctx: httpFailure(core.ErrInvalidArgument, "PUT", path, 400, "", "")},
			Errors: messages,
		}
	}

	domainUsers, ok := c.users[r.Domain]
	if !ok {
		domainUsers = map[string]operations.UserAndMetadata{}
		c.users[r.Domain] = domainUsers
	}
	stored := domainUsers[r.User.Username]
	stored.Domain = r.Domain
	stored.User = operations.User{
		Username:    r.User.Username,
		DisplayName: r.User.DisplayName,
		Roles:       append([]operations.Role(nil), r.User.Roles...),
		Groups:      append([]string(nil), r.User.Groups...),
	}
	if r.User.Password != nil {
		stored.PasswordChanged = lo.ToPtr(time.Now().UTC().Format(time.RFC3339))
	}
	domainUsers[r.User.Username] = stored
	return operations.UpsertUserResponse{}
}

// withEffectiveRoles computes effective roles from direct roles and group membership.
func (c *Cluster) withEffectiveRoles(u operations.UserAndMetadata) operations.UserAndMetadata {
	var effective []operations.RoleAndOrigins
	index := map[string]int{}
	add := func(role operations.Role, origin operations.Origin) {
		key := role.String()
		if i, ok := index[key]; ok {
			effective[i].Origins = append(effective[i].Origins, origin)
			return
		}
		index[key] = len(effective)
		effective = append(effective, operations.RoleAndOrigins{Role: role, Origins: []operations.Origin{origin}})
	}
	for _, role := range u.Roles {
		add(role, operations.Origin{Type: "user"})
	}
	for _, name := range u.Groups {
		g, ok := c.groups[name]
		if !ok {
			continue
		}
		for _, role := range g.Roles {
			add(role, operations.Origin{Type: "group", Name: lo.ToPtr(name)})
		}
	}
	u.EffectiveRoles = effective
	return u
}

func (c *Cluster) getUser(r operations.GetUserRequest) operations.Response {
	u, ok := c.users[r.Domain][r.Username]
	if !ok {
		return operations.GetUserResponse{Header: operations.Header{
			Ctx: httpFailure(core.ErrUserNotFound, "GET", userPath(r.Domain, r.Username), 404, `"User was not found."`, ""),
		}}
	}
	return operations.GetUserResponse{User: c.withEffectiveRoles(u)}
}

func (c *Cluster) getAllUsers(r operations.GetAllUsersRequest) operations.Response {
	names := lo.Keys(c.users[r.Domain])
	sort.Strings(names)
	users := lo.Map(names, func(name string, _ int) operations.UserAndMetadata {
		return c.withEffectiveRoles(c.users[r.Domain][name])
	})
	return operations.GetAllUsersResponse{Users: users}
}

func (c *Cluster) dropUser(r operations.DropUserRequest) operations.Response {
	if _, ok := c.users[r.Domain][r.Username]; !ok {
		return operations.DropUserResponse{Header: operations.Header{
			Ctx: httpFailure(core.ErrUserNotFound, "DELETE", userPath(r.Domain, r.Username), 404, `"User was not found."`, ""),
		}}
	}
	delete(c.users[r.Domain], r.Username)
	return operations.DropUserResponse{}
}

func (c *Cluster) upsertGroup(r operations.UpsertGroupRequest) operations.Response {
	path := "/settings/rbac/groups/" + r.Group.Name
	var messages []string
	if r.Group.Name == "" {
		messages = append(messages, "name - Group name must not be empty")
	}
	if unknown := c.unknownRoles(r.Group.Roles); len(unknown) > 0 {
		messages = append(messages, rolesMessage(unknown))
	}
	if r.Group.LDAPGroupReference != nil && !strings.Contains(*r.Group.LDAPGroupReference, "=") {
		messages = append(messages, "ldap_group_ref - Malformed LDAP reference")
	}
	if len(messages) > 0 {
		return operations.UpsertGroupResponse{
			Header: operations.Header{Ctx: httpFailure(core.ErrInvalidArgument, "PUT", path, 400, "", "")},
			Errors: messages,
		}
	}
	g := r.Group
	g.Roles = append([]operations.Role(nil), r.Group.Roles...)
	c.groups[g.Name] = g
	return operations.UpsertGroupResponse{}
}

func (c *Cluster) getGroup(r operations.GetGroupRequest) operations.Response {
	g, ok := c.groups[r.Name]
	if !ok {
		return operations.GetGroupResponse{Header: operations.Header{
			Ctx: httpFailure(core.ErrGroupNotFound, "GET", "/settings/rbac/groups/"+r.Name, 404, `"Unknown group."`, ""),
		}}
	}
	return operations.GetGroupResponse{Group: g}
}

func (c *Cluster) getAllGroups() operations.Response {
	names := lo.Keys(c.groups)
	sort.Strings(names)
	return operations.GetAllGroupsResponse{Groups: lo.Map(names, func(name string, _ int) operations.Group {
		return c.groups[name]
	})}
}

func (c *Cluster) dropGroup(r operations.DropGroupRequest) operations.Response {
	if _, ok := c.groups[r.Name]; !ok {
		return operations.DropGroupResponse{Header: operations.Header{
			Ctx: httpFailure(core.ErrGroupNotFound, "DELETE", "/settings/rbac/groups/"+r.Name, 404, `"Unknown group."`, ""),
		}}
	}
	delete(c.groups, r.Name)
	return operations.DropGroupResponse{}
}

func storedName(name string, ns operations.DesignDocumentNamespace) string {
	if ns == operations.NamespaceDevelopment && !strings.HasPrefix(name, "dev_") {
		return "dev_" + name
	}
	return name
}

func designDocPath(bucket, name string, ns operations.DesignDocumentNamespace) string {
	return fmt.Sprintf("/%s/_design/%s", bucket, storedName(name, ns))
}

func (c *Cluster) bucket(name, method, path, clientContextID string) (map[string]operations.DesignDocument, *core.ErrorContext) {
	docs, ok := c.buckets[name]
	if !ok {
		ctx := httpFailure(core.ErrBucketNotFound, method, path, 404, `{"error":"not_found","reason":"no_couchbase_bucket_exists"}`, clientContextID)
		return nil, &ctx
	}
	return docs, nil
}

func (c *Cluster) upsertDesignDocument(r operations.UpsertDesignDocumentRequest) operations.Response {
	path := designDocPath(r.BucketName, r.Document.Name, r.Document.Namespace)
	docs, failure := c.bucket(r.BucketName, "PUT", path, r.ClientContextID)
	if failure != nil {
		return operations.UpsertDesignDocumentResponse{Header: operations.Header{Ctx: *failure}}
	}
	doc := r.Document
	doc.Views = lo.Assign(r.Document.Views)
	doc.Rev = fmt.Sprintf("%d-%s", revision(docs[storedName(doc.Name, doc.Namespace)].Rev)+1, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	docs[storedName(doc.Name, doc.Namespace)] = doc
	return operations.UpsertDesignDocumentResponse{}
}

func revision(rev string) int {
	var n int
	if _, err := fmt.Sscanf(rev, "%d-", &n); err != nil {
		return 0
	}
	return n
}

func (c *Cluster) getDesignDocument(r operations.GetDesignDocumentRequest) operations.Response {
	path := designDocPath(r.BucketName, r.DocumentName, r.Namespace)
	docs, failure := c.bucket(r.BucketName, "GET", path, r.ClientContextID)
	if failure != nil {
		return operations.GetDesignDocumentResponse{Header: operations.Header{Ctx: *failure}}
	}
	doc, ok := docs[storedName(r.DocumentName, r.Namespace)]
	if !ok {
		return operations.GetDesignDocumentResponse{Header: operations.Header{
			Ctx: httpFailure(core.ErrDesignDocumentNotFound, "GET", path, 404, `{"error":"not_found","reason":"missing"}`, r.ClientContextID),
		}}
	}
	return operations.GetDesignDocumentResponse{Document: doc}
}

func (c *Cluster) dropDesignDocument(r operations.DropDesignDocumentRequest) operations.Response {
	path := designDocPath(r.BucketName, r.DocumentName, r.Namespace)
	docs, failure := c.bucket(r.BucketName, "DELETE", path, r.ClientContextID)
	if failure != nil {
		return operations.DropDesignDocumentResponse{Header: operations.Header{Ctx: *failure}}
	}
	key := storedName(r.DocumentName, r.Namespace)
	if _, ok := docs[key]; !ok {
		return operations.DropDesignDocumentResponse{Header: operations.Header{
			Ctx: httpFailure(core.ErrDesignDocumentNotFound, "DELETE", path, 404, `{"error":"not_found","reason":"missing"}`, r.ClientContextID),
		}}
	}
	delete(docs, key)
	return operations.DropDesignDocumentResponse{}
}

func (c *Cluster) getAllDesignDocuments(r operations.GetAllDesignDocumentsRequest) operations.Response {
	path := fmt.Sprintf("/pools/default/buckets/%s/ddocs", r.BucketName)
	docs, failure := c.bucket(r.BucketName, "GET", path, r.ClientContextID)
	if failure != nil {
		return operations.GetAllDesignDocumentsResponse{Header: operations.Header{Ctx: *failure}}
	}
	keys := lo.Keys(docs)
	sort.Strings(keys)
	out := lo.FilterMap(keys, func(key string, _ int) (operations.DesignDocument, bool) {
		doc := docs[key]
		return doc, doc.Namespace == r.Namespace
	})
	return operations.GetAllDesignDocumentsResponse{Documents: out}
}
