package client

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/couchbase/gocbcore/v10"
	"github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
	"github.com/DrewBradfordXYZ/cbmgmt-go/operations"
	"github.com/DrewBradfordXYZ/cbmgmt-go/translate"
)

const (
	formContentType = "application/x-www-form-urlencoded"
	jsonContentType = "application/json"
)

// route is the REST call a management request maps to.
type route struct {
	service     gocbcore.ServiceType
	method      string
	path        string
	body        []byte
	contentType string
	// notFound is the code reported for a 404.
	notFound error
}

func (r route) idempotent() bool {
	return r.method == "GET"
}

func userPath(d operations.AuthDomain, username string) string {
	p := "/settings/rbac/users/" + translate.FormatAuthDomain(d)
	if username != "" {
		p += "/" + url.PathEscape(username)
	}
	return p
}

func groupPath(name string) string {
	p := "/settings/rbac/groups"
	if name != "" {
		p += "/" + url.PathEscape(name)
	}
	return p
}

// storedName is the name a design document is stored under: development
// documents carry the "dev_" prefix.
func storedName(name string, ns operations.DesignDocumentNamespace) string {
	if ns == operations.NamespaceDevelopment && !strings.HasPrefix(name, "dev_") {
		return "dev_" + name
	}
	return name
}

func designDocPath(bucket, name string, ns operations.DesignDocumentNamespace) string {
	return "/" + url.PathEscape(bucket) + "/_design/" + url.PathEscape(storedName(name, ns))
}

func joinRoles(roles []operations.Role) string {
	return strings.Join(lo.Map(roles, func(r operations.Role, _ int) string { return r.String() }), ",")
}

func userForm(u operations.User) []byte {
	form := url.Values{}
	if u.DisplayName != nil {
		form.Set("name", *u.DisplayName)
	}
	if u.Password != nil {
		form.Set("password", *u.Password)
	}
	form.Set("roles", joinRoles(u.Roles))
	if len(u.Groups) > 0 {
		form.Set("groups", strings.Join(u.Groups, ","))
	}
	return []byte(form.Encode())
}

func groupForm(g operations.Group) []byte {
	form := url.Values{}
	form.Set("description", lo.FromPtr(g.Description))
	form.Set("roles", joinRoles(g.Roles))
	if g.LDAPGroupReference != nil {
		form.Set("ldap_group_ref", *g.LDAPGroupReference)
	}
	return []byte(form.Encode())
}

type viewJSON struct {
	Map    *string `json:"map,omitempty"`
	Reduce *string `json:"reduce,omitempty"`
}

type designDocJSON struct {
	Views map[string]viewJSON `json:"views"`
}

func designDocBody(d operations.DesignDocument) ([]byte, error) {
	doc := designDocJSON{Views: make(map[string]viewJSON, len(d.Views))}
	for name, v := range d.Views {
		doc.Views[name] = viewJSON{Map: v.Map, Reduce: v.Reduce}
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrapf(err, "encode design document %q", d.Name)
	}
	return body, nil
}

// routeFor maps req onto its REST call.
func routeFor(req operations.Request) (route, error) {
	switch r := req.(type) {
	case operations.UpsertUserRequest:
		return route{
			service: gocbcore.MgmtService, method: "PUT", path: userPath(r.Domain, r.User.Username),
			body: userForm(r.User), contentType: formContentType,
		}, nil
	case operations.GetUserRequest:
		return route{service: gocbcore.MgmtService, method: "GET", path: userPath(r.Domain, r.Username), notFound: core.ErrUserNotFound}, nil
	case operations.GetAllUsersRequest:
		return route{service: gocbcore.MgmtService, method: "GET", path: userPath(r.Domain, "")}, nil
	case operations.DropUserRequest:
		return route{service: gocbcore.MgmtService, method: "DELETE", path: userPath(r.Domain, r.Username), notFound: core.ErrUserNotFound}, nil
	case operations.GetRolesRequest:
		return route{service: gocbcore.MgmtService, method: "GET", path: "/settings/rbac/roles"}, nil
	case operations.UpsertGroupRequest:
		return route{
			service: gocbcore.MgmtService, method: "PUT", path: groupPath(r.Group.Name),
			body: groupForm(r.Group), contentType: formContentType,
		}, nil
	case operations.GetGroupRequest:
		return route{service: gocbcore.MgmtService, method: "GET", path: groupPath(r.Name), notFound: core.ErrGroupNotFound}, nil
	case operations.GetAllGroupsRequest:
		return route{service: gocbcore.MgmtService, method: "GET", path: groupPath("")}, nil
	case operations.DropGroupRequest:
		return route{service: gocbcore.MgmtService, method: "DELETE", path: groupPath(r.Name), notFound: core.ErrGroupNotFound}, nil
	case operations.UpsertDesignDocumentRequest:
		body, err := designDocBody(r.Document)
		if err != nil {
			return route{}, err
		}
		return route{
			service: gocbcore.CapiService, method: "PUT", path: designDocPath(r.BucketName, r.Document.Name, r.Document.Namespace),
			body: body, contentType: jsonContentType, notFound: core.ErrBucketNotFound,
		}, nil
	case operations.GetDesignDocumentRequest:
		return route{
			service: gocbcore.CapiService, method: "GET", path: designDocPath(r.BucketName, r.DocumentName, r.Namespace),
			notFound: core.ErrDesignDocumentNotFound,
		}, nil
	case operations.DropDesignDocumentRequest:
		return route{
			service: gocbcore.CapiService, method: "DELETE", path: designDocPath(r.BucketName, r.DocumentName, r.Namespace),
			notFound: core.ErrDesignDocumentNotFound,
		}, nil
	case operations.GetAllDesignDocumentsRequest:
		return route{
			service: gocbcore.MgmtService, method: "GET",
			path:     "/pools/default/buckets/" + url.PathEscape(r.BucketName) + "/ddocs",
			notFound: core.ErrBucketNotFound,
		}, nil
	default:
		return route{}, core.Coded(core.ErrUnsupportedOperation, errors.Newf("no REST route for %T", req))
	}
}
