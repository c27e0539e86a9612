package operations

import (
	"fmt"

	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
)

// Response is a native management response.
//
// Every response carries a status block; Status().Err is nil on success.
type Response interface {
	Status() core.ErrorContext
}

// ValidationReporter is implemented by responses that carry server-side
// validation messages (the upsert responses).
type ValidationReporter interface {
	ValidationMessages() []string
}

// Header is embedded in every response.
type Header struct {
	Ctx core.ErrorContext
}

func (h Header) Status() core.ErrorContext { return h.Ctx }

type UpsertUserResponse struct {
	Header
	Errors []string
}

func (r UpsertUserResponse) ValidationMessages() []string { return r.Errors }

type GetUserResponse struct {
	Header
	User UserAndMetadata
}

type GetAllUsersResponse struct {
	Header
	Users []UserAndMetadata
}

type DropUserResponse struct {
	Header
}

type GetRolesResponse struct {
	Header
	Roles []RoleAndDescription
}

type UpsertGroupResponse struct {
	Header
	Errors []string
}

func (r UpsertGroupResponse) ValidationMessages() []string { return r.Errors }

type GetGroupResponse struct {
	Header
	Group Group
}

type GetAllGroupsResponse struct {
	Header
	Groups []Group
}

type DropGroupResponse struct {
	Header
}

type UpsertDesignDocumentResponse struct {
	Header
}

type GetDesignDocumentResponse struct {
	Header
	Document DesignDocument
}

type DropDesignDocumentResponse struct {
	Header
}

type GetAllDesignDocumentsResponse struct {
	Header
	Documents []DesignDocument
}

// ErrorResponse builds the empty response matching req with the given status.
//
// Executors use it to report failures that happen before any payload exists.
func ErrorResponse(req Request, ctx core.ErrorContext) Response {
	h := Header{Ctx: ctx}
	switch req.(type) {
	case UpsertUserRequest:
		return UpsertUserResponse{Header: h}
	case GetUserRequest:
		return GetUserResponse{Header: h}
	case GetAllUsersRequest:
		return GetAllUsersResponse{Header: h}
	case DropUserRequest:
		return DropUserResponse{Header: h}
	case GetRolesRequest:
		return GetRolesResponse{Header: h}
	case UpsertGroupRequest:
		return UpsertGroupResponse{Header: h}
	case GetGroupRequest:
		return GetGroupResponse{Header: h}
	case GetAllGroupsRequest:
		return GetAllGroupsResponse{Header: h}
	case DropGroupRequest:
		return DropGroupResponse{Header: h}
	case UpsertDesignDocumentRequest:
		return UpsertDesignDocumentResponse{Header: h}
	case GetDesignDocumentRequest:
		return GetDesignDocumentResponse{Header: h}
	case DropDesignDocumentRequest:
		return DropDesignDocumentResponse{Header: h}
	case GetAllDesignDocumentsRequest:
		return GetAllDesignDocumentsResponse{Header: h}
	default:
		panic(fmt.Sprintf("operations: no response type for %T", req))
	}
}
