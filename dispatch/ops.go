package dispatch

import (
	"github.com/DrewBradfordXYZ/cbmgmt-go/bridge"
	"github.com/DrewBradfordXYZ/cbmgmt-go/operations"
	"github.com/DrewBradfordXYZ/cbmgmt-go/translate"
)

// Op is a published operation tag.
type Op string

// User management operations.
const (
	OpUpsertUser   Op = "UPSERT_USER"
	OpGetUser      Op = "GET_USER"
	OpGetAllUsers  Op = "GET_ALL_USERS"
	OpDropUser     Op = "DROP_USER"
	OpGetRoles     Op = "GET_ROLES"
	OpUpsertGroup  Op = "UPSERT_GROUP"
	OpGetGroup     Op = "GET_GROUP"
	OpGetAllGroups Op = "GET_ALL_GROUPS"
	OpDropGroup    Op = "DROP_GROUP"
)

// View index management operations.
const (
	OpUpsertIndex   Op = "UPSERT_INDEX"
	OpGetIndex      Op = "GET_INDEX"
	OpDropIndex     Op = "DROP_INDEX"
	OpGetAllIndexes Op = "GET_ALL_INDEXES"
)

// Operation families.
const (
	FamilyUserManagement      = "user_management"
	FamilyViewIndexManagement = "view_index_management"
)

// UserManagementOperations lists the user management tags in publication order.
var UserManagementOperations = []Op{
	OpUpsertUser, OpGetUser, OpGetAllUsers, OpDropUser, OpGetRoles,
	OpUpsertGroup, OpGetGroup, OpGetAllGroups, OpDropGroup,
}

// ViewIndexManagementOperations lists the view index management tags in publication order.
var ViewIndexManagementOperations = []Op{
	OpUpsertIndex, OpGetIndex, OpDropIndex, OpGetAllIndexes,
}

// Families maps each family name to its tags.
var Families = map[string][]Op{
	FamilyUserManagement:      UserManagementOperations,
	FamilyViewIndexManagement: ViewIndexManagementOperations,
}

const (
	msgUserNative        = "Error doing user mgmt operation."
	msgUserBuild         = "User mgmt operation error."
	msgUserUpsertNative  = "Error doing user mgmt upsert operation."
	msgUserUpsertBuild   = "User mgmt upsert operation error."
	msgGroupUpsertNative = "Error doing user mgmt group upsert operation."
	msgGroupUpsertBuild  = "User mgmt group upsert operation error."
	msgViewNative        = "Error doing view index mgmt operation."
	msgViewBuild         = "View index mgmt operation error."

	msgUnknownUserOp = "Unrecognized user mgmt operation passed in."
	msgUnknownViewOp = "Unrecognized view index mgmt operation passed in."
	msgUnknownOp     = "Unrecognized mgmt operation passed in."
)

// opEntry is one row of the operation table.
type opEntry struct {
	family        string
	nativeMessage string
	buildMessage  string
	// validation marks operations whose native failures carry validation messages.
	validation bool
	// viewIndex requests carry a client context id.
	viewIndex bool
	request   func(a Args, base operations.Base) (operations.Request, error)
	result    func(operations.Response) (bridge.Result, error)
}

func userOp(request func(Args, operations.Base) (operations.Request, error), result func(operations.Response) (bridge.Result, error)) opEntry {
	return opEntry{
		family:        FamilyUserManagement,
		nativeMessage: msgUserNative,
		buildMessage:  msgUserBuild,
		request:       request,
		result:        result,
	}
}

func viewOp(request func(Args, operations.Base) (operations.Request, error), result func(operations.Response) (bridge.Result, error)) opEntry {
	return opEntry{
		family:        FamilyViewIndexManagement,
		nativeMessage: msgViewNative,
		buildMessage:  msgViewBuild,
		viewIndex:     true,
		request:       request,
		result:        result,
	}
}

var operationTable = map[Op]opEntry{
	OpUpsertUser: {
		family:        FamilyUserManagement,
		nativeMessage: msgUserUpsertNative,
		buildMessage:  msgUserUpsertBuild,
		validation:    true,
		request:       upsertUserRequest,
		result:        emptyResult,
	},
	OpGetUser:     userOp(getUserRequest, getUserResult),
	OpGetAllUsers: userOp(getAllUsersRequest, getAllUsersResult),
	OpDropUser:    userOp(dropUserRequest, emptyResult),
	OpGetRoles:    userOp(getRolesRequest, getRolesResult),
	OpUpsertGroup: {
		family:        FamilyUserManagement,
		nativeMessage: msgGroupUpsertNative,
		buildMessage:  msgGroupUpsertBuild,
		validation:    true,
		request:       upsertGroupRequest,
		result:        emptyResult,
	},
	OpGetGroup:     userOp(getGroupRequest, getGroupResult),
	OpGetAllGroups: userOp(getAllGroupsRequest, getAllGroupsResult),
	OpDropGroup:    userOp(dropGroupRequest, emptyResult),

	OpUpsertIndex:   viewOp(upsertIndexRequest, emptyResult),
	OpGetIndex:      viewOp(getIndexRequest, getIndexResult),
	OpDropIndex:     viewOp(dropIndexRequest, emptyResult),
	OpGetAllIndexes: viewOp(getAllIndexesRequest, getAllIndexesResult),
}

// Lookup reports whether op is a published tag and its family.
func Lookup(op Op) (family string, ok bool) {
	entry, ok := operationTable[op]
	return entry.family, ok
}

func upsertUserRequest(a Args, base operations.Base) (operations.Request, error) {
	domain, err := a.requiredString("domain")
	if err != nil {
		return nil, err
	}
	user, err := a.requiredMap("user")
	if err != nil {
		return nil, err
	}
	return operations.UpsertUserRequest{
		Base:   base,
		Domain: translate.ParseAuthDomain(domain),
		User:   translate.DecodeUser(user),
	}, nil
}

func getUserRequest(a Args, base operations.Base) (operations.Request, error) {
	domain, err := a.requiredString("domain")
	if err != nil {
		return nil, err
	}
	username, err := a.requiredString("username")
	if err != nil {
		return nil, err
	}
	return operations.GetUserRequest{Base: base, Domain: translate.ParseAuthDomain(domain), Username: username}, nil
}

func getAllUsersRequest(a Args, base operations.Base) (operations.Request, error) {
	domain, err := a.requiredString("domain")
	if err != nil {
		return nil, err
	}
	return operations.GetAllUsersRequest{Base: base, Domain: translate.ParseAuthDomain(domain)}, nil
}

func dropUserRequest(a Args, base operations.Base) (operations.Request, error) {
	domain, err := a.requiredString("domain")
	if err != nil {
		return nil, err
	}
	username, err := a.requiredString("username")
	if err != nil {
		return nil, err
	}
	return operations.DropUserRequest{Base: base, Domain: translate.ParseAuthDomain(domain), Username: username}, nil
}

func getRolesRequest(_ Args, base operations.Base) (operations.Request, error) {
	return operations.GetRolesRequest{Base: base}, nil
}

func upsertGroupRequest(a Args, base operations.Base) (operations.Request, error) {
	group, err := a.requiredMap("group")
	if err != nil {
		return nil, err
	}
	return operations.UpsertGroupRequest{Base: base, Group: translate.DecodeGroup(group)}, nil
}

func getGroupRequest(a Args, base operations.Base) (operations.Request, error) {
	name, err := a.requiredString("name")
	if err != nil {
		return nil, err
	}
	return operations.GetGroupRequest{Base: base, Name: name}, nil
}

func getAllGroupsRequest(_ Args, base operations.Base) (operations.Request, error) {
	return operations.GetAllGroupsRequest{Base: base}, nil
}

func dropGroupRequest(a Args, base operations.Base) (operations.Request, error) {
	name, err := a.requiredString("name")
	if err != nil {
		return nil, err
	}
	return operations.DropGroupRequest{Base: base, Name: name}, nil
}

func upsertIndexRequest(a Args, base operations.Base) (operations.Request, error) {
	bucket, err := a.requiredString("bucket_name")
	if err != nil {
		return nil, err
	}
	doc, err := a.requiredMap("design_document")
	if err != nil {
		return nil, err
	}
	return operations.UpsertDesignDocumentRequest{
		Base:       base,
		BucketName: bucket,
		Document:   translate.DecodeDesignDocument(doc),
	}, nil
}

// documentArgs reads the bucket, document name and namespace shared by get and drop.
func documentArgs(a Args) (bucket, name string, ns operations.DesignDocumentNamespace, err error) {
	if bucket, err = a.requiredString("bucket_name"); err != nil {
		return
	}
	if name, err = a.requiredString("document_name"); err != nil {
		return
	}
	var raw string
	if raw, err = a.requiredString("name_space"); err != nil {
		return
	}
	return bucket, name, translate.ParseNamespace(raw), nil
}

func getIndexRequest(a Args, base operations.Base) (operations.Request, error) {
	bucket, name, ns, err := documentArgs(a)
	if err != nil {
		return nil, err
	}
	return operations.GetDesignDocumentRequest{Base: base, BucketName: bucket, DocumentName: name, Namespace: ns}, nil
}

func dropIndexRequest(a Args, base operations.Base) (operations.Request, error) {
	bucket, name, ns, err := documentArgs(a)
	if err != nil {
		return nil, err
	}
	return operations.DropDesignDocumentRequest{Base: base, BucketName: bucket, DocumentName: name, Namespace: ns}, nil
}

func getAllIndexesRequest(a Args, base operations.Base) (operations.Request, error) {
	bucket, err := a.requiredString("bucket_name")
	if err != nil {
		return nil, err
	}
	ns, err := a.requiredString("name_space")
	if err != nil {
		return nil, err
	}
	return operations.GetAllDesignDocumentsRequest{Base: base, BucketName: bucket, Namespace: translate.ParseNamespace(ns)}, nil
}

func emptyResult(operations.Response) (bridge.Result, error) {
	return bridge.Result{}, nil
}

// encodeAll encodes items into a list under key.
func encodeAll[T any](key string, items []T, encode func(T) (map[string]any, error)) (bridge.Result, error) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		m, err := encode(item)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return bridge.Result{key: out}, nil
}

func getUserResult(resp operations.Response) (bridge.Result, error) {
	m, err := translate.EncodeUserAndMetadata(resp.(operations.GetUserResponse).User)
	if err != nil {
		return nil, err
	}
	return bridge.Result{"user_and_metadata": m}, nil
}

func getAllUsersResult(resp operations.Response) (bridge.Result, error) {
	return encodeAll("users", resp.(operations.GetAllUsersResponse).Users, translate.EncodeUserAndMetadata)
}

func getRolesResult(resp operations.Response) (bridge.Result, error) {
	return encodeAll("roles", resp.(operations.GetRolesResponse).Roles, translate.EncodeRoleAndDescription)
}

func getGroupResult(resp operations.Response) (bridge.Result, error) {
	m, err := translate.EncodeGroup(resp.(operations.GetGroupResponse).Group)
	if err != nil {
		return nil, err
	}
	return bridge.Result{"group": m}, nil
}

func getAllGroupsResult(resp operations.Response) (bridge.Result, error) {
	return encodeAll("groups", resp.(operations.GetAllGroupsResponse).Groups, translate.EncodeGroup)
}

func getIndexResult(resp operations.Response) (bridge.Result, error) {
	m, err := translate.EncodeDesignDocument(resp.(operations.GetDesignDocumentResponse).Document)
	if err != nil {
		return nil, err
	}
	return bridge.Result{"design_document": m}, nil
}

func getAllIndexesResult(resp operations.Response) (bridge.Result, error) {
	return encodeAll("design_documents", resp.(operations.GetAllDesignDocumentsResponse).Documents, translate.EncodeDesignDocument)
}
