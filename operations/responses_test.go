package operations

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
)

func TestErrorResponse(t *testing.T) {
	ctx := core.ErrorContext{Err: core.ErrTemporaryFailure}

	tests := []struct {
		req  Request
		want Response
	}{
		{UpsertUserRequest{}, UpsertUserResponse{Header: Header{Ctx: ctx}}},
		{GetUserRequest{}, GetUserResponse{Header: Header{Ctx: ctx}}},
		{GetAllUsersRequest{}, GetAllUsersResponse{Header: Header{Ctx: ctx}}},
		{DropUserRequest{}, DropUserResponse{Header: Header{Ctx: ctx}}},
		{GetRolesRequest{}, GetRolesResponse{Header: Header{Ctx: ctx}}},
		{UpsertGroupRequest{}, UpsertGroupResponse{Header: Header{Ctx: ctx}}},
		{GetGroupRequest{}, GetGroupResponse{Header: Header{Ctx: ctx}}},
		{GetAllGroupsRequest{}, GetAllGroupsResponse{Header: Header{Ctx: ctx}}},
		{DropGroupRequest{}, DropGroupResponse{Header: Header{Ctx: ctx}}},
		{UpsertDesignDocumentRequest{}, UpsertDesignDocumentResponse{Header: Header{Ctx: ctx}}},
		{GetDesignDocumentRequest{}, GetDesignDocumentResponse{Header: Header{Ctx: ctx}}},
		{DropDesignDocumentRequest{}, DropDesignDocumentResponse{Header: Header{Ctx: ctx}}},
		{GetAllDesignDocumentsRequest{}, GetAllDesignDocumentsResponse{Header: Header{Ctx: ctx}}},
	}

	for _, tt := range tests {
		t.Run(tt.req.Operation(), func(t *testing.T) {
			resp := ErrorResponse(tt.req, ctx)
			assert.Equal(t, tt.want, resp)
			assert.True(t, resp.Status().Failed())
		})
	}
}

func TestValidationReporter(t *testing.T) {
	var resp Response = UpsertGroupResponse{Errors: []string{"name - required"}}

	v, ok := resp.(ValidationReporter)
	assert.True(t, ok)
	assert.Equal(t, []string{"name - required"}, v.ValidationMessages())

	_, ok = Response(GetGroupResponse{}).(ValidationReporter)
	assert.False(t, ok)
}

func TestNamespaceString(t *testing.T) {
	assert.Equal(t, "production", NamespaceProduction.String())
	assert.Equal(t, "development", NamespaceDevelopment.String())
	assert.Equal(t, "development", DesignDocumentNamespace(7).String())
}
