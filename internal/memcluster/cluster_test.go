package memcluster

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
	"github.com/DrewBradfordXYZ/cbmgmt-go/operations"
)

// execute runs req synchronously for tests.
func execute(t *testing.T, c *Cluster, req operations.Request) operations.Response {
	t.Helper()
	ch := make(chan operations.Response, 1)
	c.Execute(req, func(resp operations.Response) { ch <- resp })
	select {
	case resp := <-ch:
		return resp
	case <-time.After(5 * time.Second):
		t.Fatalf("no completion for %s", req.Operation())
		return nil
	}
}

func newCluster(t *testing.T, opts ...Option) *Cluster {
	t.Helper()
	c, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestUsers(t *testing.T) {
	c := newCluster(t)

	resp := execute(t, c, operations.UpsertGroupRequest{Group: operations.Group{
		Name:  "readers",
		Roles: []operations.Role{{Name: "data_reader", Bucket: lo.ToPtr("travel")}},
	}})
	require.False(t, resp.Status().Failed())

	resp = execute(t, c, operations.UpsertUserRequest{
		Domain: operations.AuthDomainLocal,
		User: operations.User{
			Username: "alice",
			Password: lo.ToPtr("password"),
			Roles:    []operations.Role{{Name: "admin"}},
			Groups:   []string{"readers"},
		},
	})
	require.False(t, resp.Status().Failed())

	got := execute(t, c, operations.GetUserRequest{Domain: operations.AuthDomainLocal, Username: "alice"}).(operations.GetUserResponse)
	require.False(t, got.Status().Failed())
	assert.Nil(t, got.User.Password)
	assert.NotNil(t, got.User.PasswordChanged)
	require.Len(t, got.User.EffectiveRoles, 2)
	assert.Equal(t, "user", got.User.EffectiveRoles[0].Origins[0].Type)
	assert.Equal(t, "group", got.User.EffectiveRoles[1].Origins[0].Type)
	assert.Equal(t, lo.ToPtr("readers"), got.User.EffectiveRoles[1].Origins[0].Name)

	all := execute(t, c, operations.GetAllUsersRequest{Domain: operations.AuthDomainLocal}).(operations.GetAllUsersResponse)
	assert.Len(t, all.Users, 1)

	external := execute(t, c, operations.GetAllUsersRequest{Domain: operations.AuthDomainExternal}).(operations.GetAllUsersResponse)
	assert.Empty(t, external.Users)

	resp = execute(t, c, operations.DropUserRequest{Domain: operations.AuthDomainLocal, Username: "alice"})
	require.False(t, resp.Status().Failed())

	missing := execute(t, c, operations.GetUserRequest{Domain: operations.AuthDomainLocal, Username: "alice"})
	require.True(t, missing.Status().Failed())
	assert.True(t, errors.Is(missing.Status().Err, core.ErrUserNotFound))
	assert.Equal(t, 404, missing.Status().HTTP.HTTPStatus)
	assert.Equal(t, "/settings/rbac/users/local/alice", missing.Status().HTTP.Path)
}

func TestUpsertValidation(t *testing.T) {
	c := newCluster(t)

	resp := execute(t, c, operations.UpsertGroupRequest{Group: operations.Group{
		Name:               "ops",
		Roles:              []operations.Role{{Name: "no_such_role", Bucket: lo.ToPtr("b")}},
		LDAPGroupReference: lo.ToPtr("not a dn"),
	}}).(operations.UpsertGroupResponse)

	require.True(t, resp.Status().Failed())
	assert.Equal(t, 400, resp.Status().HTTP.HTTPStatus)
	assert.Equal(t, []string{
		"roles - Cannot assign roles to user because the following roles are unknown, malformed or role parameters are undefined: [no_such_role[b]]",
		"ldap_group_ref - Malformed LDAP reference",
	}, resp.Errors)

	user := execute(t, c, operations.UpsertUserRequest{User: operations.User{Username: "bob", Password: lo.ToPtr("123")}}).(operations.UpsertUserResponse)
	assert.Equal(t, []string{"password - The password must be at least 6 characters long."}, user.Errors)
}

func TestGroups(t *testing.T) {
	c := newCluster(t)

	for _, name := range []string{"b", "a"} {
		require.False(t, execute(t, c, operations.UpsertGroupRequest{Group: operations.Group{Name: name}}).Status().Failed())
	}

	all := execute(t, c, operations.GetAllGroupsRequest{}).(operations.GetAllGroupsResponse)
	assert.Equal(t, []string{"a", "b"}, lo.Map(all.Groups, func(g operations.Group, _ int) string { return g.Name }))

	require.False(t, execute(t, c, operations.DropGroupRequest{Name: "a"}).Status().Failed())
	dropped := execute(t, c, operations.DropGroupRequest{Name: "a"})
	assert.True(t, errors.Is(dropped.Status().Err, core.ErrGroupNotFound))

	roles := execute(t, c, operations.GetRolesRequest{}).(operations.GetRolesResponse)
	assert.Len(t, roles.Roles, len(DefaultRoles))
}

func TestDesignDocuments(t *testing.T) {
	c := newCluster(t, WithBuckets("beer-sample"))

	doc := operations.DesignDocument{
		Name:      "beers",
		Namespace: operations.NamespaceDevelopment,
		Views:     map[string]operations.View{"by_name": {Name: "by_name", Map: lo.ToPtr("function (doc) {}")}},
	}
	require.False(t, execute(t, c, operations.UpsertDesignDocumentRequest{BucketName: "beer-sample", Document: doc}).Status().Failed())

	got := execute(t, c, operations.GetDesignDocumentRequest{
		BucketName: "beer-sample", DocumentName: "beers", Namespace: operations.NamespaceDevelopment,
	}).(operations.GetDesignDocumentResponse)
	require.False(t, got.Status().Failed())
	assert.Regexp(t, `^1-[0-9a-f]{8}$`, got.Document.Rev)

	prod := execute(t, c, operations.GetDesignDocumentRequest{
		Base:       operations.Base{ClientContextID: "ctx-1"},
		BucketName: "beer-sample", DocumentName: "beers", Namespace: operations.NamespaceProduction,
	})
	require.True(t, prod.Status().Failed())
	assert.True(t, errors.Is(prod.Status().Err, core.ErrDesignDocumentNotFound))
	assert.Equal(t, "ctx-1", prod.Status().HTTP.ClientContextID)
	assert.Equal(t, "/beer-sample/_design/beers", prod.Status().HTTP.Path)

	dev := execute(t, c, operations.GetAllDesignDocumentsRequest{BucketName: "beer-sample", Namespace: operations.NamespaceDevelopment}).(operations.GetAllDesignDocumentsResponse)
	assert.Len(t, dev.Documents, 1)

	noBucket := execute(t, c, operations.GetAllDesignDocumentsRequest{BucketName: "nope"})
	assert.True(t, errors.Is(noBucket.Status().Err, core.ErrBucketNotFound))

	require.False(t, execute(t, c, operations.DropDesignDocumentRequest{
		BucketName: "beer-sample", DocumentName: "beers", Namespace: operations.NamespaceDevelopment,
	}).Status().Failed())
}

func TestInjectFault(t *testing.T) {
	c := newCluster(t)
	c.InjectFault("upsert_group", core.ErrorContext{Err: core.ErrInvalidArgument}, "name required", "ldap ref invalid")

	resp := execute(t, c, operations.UpsertGroupRequest{Group: operations.Group{Name: "ops"}}).(operations.UpsertGroupResponse)
	assert.Equal(t, []string{"name required", "ldap ref invalid"}, resp.Errors)

	// faults are consumed once
	resp = execute(t, c, operations.UpsertGroupRequest{Group: operations.Group{Name: "ops"}}).(operations.UpsertGroupResponse)
	assert.False(t, resp.Status().Failed())
}

func TestClosedPoolStillCompletes(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	c.Close()

	resp := execute(t, c, operations.GetRolesRequest{})
	assert.True(t, errors.Is(resp.Status().Err, core.ErrRequestCanceled))
	assert.Equal(t, int64(1), c.Executed())
}
