package operations

import "time"

// Request is a native management request.
type Request interface {
	// Operation names the native operation, e.g. "get_user".
	Operation() string
	// RequestTimeout returns the per-request timeout; zero means the client default.
	RequestTimeout() time.Duration
}

// Base carries the fields shared by every request.
type Base struct {
	Timeout time.Duration
	// ClientContextID correlates server-side logs; only view-index requests send it.
	ClientContextID string
}

func (b Base) RequestTimeout() time.Duration { return b.Timeout }

type UpsertUserRequest struct {
	Base
	Domain AuthDomain
	User   User
}

type GetUserRequest struct {
	Base
	Domain   AuthDomain
	Username string
}

type GetAllUsersRequest struct {
	Base
	Domain AuthDomain
}

type DropUserRequest struct {
	Base
	Domain   AuthDomain
	Username string
}

type GetRolesRequest struct {
	Base
}

type UpsertGroupRequest struct {
	Base
	Group Group
}

type GetGroupRequest struct {
	Base
	Name string
}

type GetAllGroupsRequest struct {
	Base
}

type DropGroupRequest struct {
	Base
	Name string
}

type UpsertDesignDocumentRequest struct {
	Base
	BucketName string
	Document   DesignDocument
}

type GetDesignDocumentRequest struct {
	Base
	BucketName   string
	DocumentName string
	Namespace    DesignDocumentNamespace
}

type DropDesignDocumentRequest struct {
	Base
	BucketName   string
	DocumentName string
	Namespace    DesignDocumentNamespace
}

type GetAllDesignDocumentsRequest struct {
	Base
	BucketName string
	Namespace  DesignDocumentNamespace
}

func (UpsertUserRequest) Operation() string            { return "upsert_user" }
func (GetUserRequest) Operation() string               { return "get_user" }
func (GetAllUsersRequest) Operation() string           { return "get_all_users" }
func (DropUserRequest) Operation() string              { return "drop_user" }
func (GetRolesRequest) Operation() string              { return "get_roles" }
func (UpsertGroupRequest) Operation() string           { return "upsert_group" }
func (GetGroupRequest) Operation() string              { return "get_group" }
func (GetAllGroupsRequest) Operation() string          { return "get_all_groups" }
func (DropGroupRequest) Operation() string             { return "drop_group" }
func (UpsertDesignDocumentRequest) Operation() string  { return "upsert_design_document" }
func (GetDesignDocumentRequest) Operation() string     { return "get_design_document" }
func (DropDesignDocumentRequest) Operation() string    { return "drop_design_document" }
func (GetAllDesignDocumentsRequest) Operation() string { return "get_all_design_documents" }
