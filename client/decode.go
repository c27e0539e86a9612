package client

import (
	"net/http"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/DrewBradfordXYZ/cbmgmt-go/core"
	"github.com/DrewBradfordXYZ/cbmgmt-go/operations"
	"github.com/DrewBradfordXYZ/cbmgmt-go/translate"
)

type originJSON struct {
	Type string  `json:"type"`
	Name *string `json:"name,omitempty"`
}

type roleJSON struct {
	Role           string       `json:"role"`
	BucketName     *string      `json:"bucket_name,omitempty"`
	ScopeName      *string      `json:"scope_name,omitempty"`
	CollectionName *string      `json:"collection_name,omitempty"`
	Name           string       `json:"name,omitempty"`
	Desc           string       `json:"desc,omitempty"`
	Origins        []originJSON `json:"origins,omitempty"`
}

func (r roleJSON) role() operations.Role {
	return operations.Role{Name: r.Role, Bucket: r.BucketName, Scope: r.ScopeName, Collection: r.CollectionName}
}

type userJSON struct {
	ID                 string     `json:"id"`
	Domain             string     `json:"domain"`
	Name               *string    `json:"name,omitempty"`
	Roles              []roleJSON `json:"roles"`
	Groups             []string   `json:"groups"`
	ExternalGroups     []string   `json:"external_groups"`
	PasswordChangeDate *string    `json:"password_change_date,omitempty"`
}

// user splits the server's role list: every role is an effective role, and
// those held directly (a "user" origin, or no origins at all) are the user's own.
func (u userJSON) user() operations.UserAndMetadata {
	out := operations.UserAndMetadata{
		User: operations.User{
			Username:    u.ID,
			DisplayName: u.Name,
			Roles:       []operations.Role{},
			Groups:      lo.Uniq(u.Groups),
		},
		Domain:         translate.ParseAuthDomain(u.Domain),
		EffectiveRoles: make([]operations.RoleAndOrigins, 0, len(u.Roles)),
		ExternalGroups: lo.Uniq(u.ExternalGroups),
	}
	sort.Strings(out.Groups)
	sort.Strings(out.ExternalGroups)
	if u.PasswordChangeDate != nil {
		out.PasswordChanged = lo.ToPtr(core.NormalizeTimestamp(*u.PasswordChangeDate))
	}
	for _, r := range u.Roles {
		origins := lo.Map(r.Origins, func(o originJSON, _ int) operations.Origin {
			return operations.Origin{Type: o.Type, Name: o.Name}
		})
		out.EffectiveRoles = append(out.EffectiveRoles, operations.RoleAndOrigins{Role: r.role(), Origins: origins})
		direct := len(origins) == 0 || lo.ContainsBy(origins, func(o operations.Origin) bool { return o.Type == "user" })
		if direct {
			out.Roles = append(out.Roles, r.role())
		}
	}
	return out
}

type groupJSON struct {
	ID           string     `json:"id"`
	Description  *string    `json:"description,omitempty"`
	Roles        []roleJSON `json:"roles"`
	LDAPGroupRef *string    `json:"ldap_group_ref,omitempty"`
}

func (g groupJSON) group() operations.Group {
	return operations.Group{
		Name:               g.ID,
		Description:        g.Description,
		Roles:              lo.Map(g.Roles, func(r roleJSON, _ int) operations.Role { return r.role() }),
		LDAPGroupReference: g.LDAPGroupRef,
	}
}

func decodeViews(views gjson.Result) map[string]operations.View {
	out := map[string]operations.View{}
	views.ForEach(func(name, v gjson.Result) bool {
		view := operations.View{Name: name.String()}
		if m := v.Get("map"); m.Exists() {
			view.Map = lo.ToPtr(m.String())
		}
		if r := v.Get("reduce"); r.Exists() {
			view.Reduce = lo.ToPtr(r.String())
		}
		out[view.Name] = view
		return true
	})
	return out
}

// designDocument builds a document from its stored id ("_design/dev_x" or "dev_x").
func designDocument(id, rev string, views gjson.Result) operations.DesignDocument {
	name := strings.TrimPrefix(id, "_design/")
	ns := operations.NamespaceProduction
	if strings.HasPrefix(name, "dev_") {
		ns = operations.NamespaceDevelopment
		name = strings.TrimPrefix(name, "dev_")
	}
	return operations.DesignDocument{Rev: rev, Name: name, Namespace: ns, Views: decodeViews(views)}
}

// decodeBody parses a successful response body into req's response type.
func decodeBody(req operations.Request, body []byte) (operations.Response, error) {
	switch r := req.(type) {
	case operations.UpsertUserRequest:
		return operations.UpsertUserResponse{}, nil
	case operations.DropUserRequest:
		return operations.DropUserResponse{}, nil
	case operations.DropGroupRequest:
		return operations.DropGroupResponse{}, nil
	case operations.UpsertGroupRequest:
		return operations.UpsertGroupResponse{}, nil
	case operations.UpsertDesignDocumentRequest:
		return operations.UpsertDesignDocumentResponse{}, nil
	case operations.DropDesignDocumentRequest:
		return operations.DropDesignDocumentResponse{}, nil
	case operations.GetUserRequest:
		var u userJSON
		if err := json.Unmarshal(body, &u); err != nil {
			return nil, errors.Wrap(err, "decode user")
		}
		return operations.GetUserResponse{User: u.user()}, nil
	case operations.GetAllUsersRequest:
		var users []userJSON
		if err := json.Unmarshal(body, &users); err != nil {
			return nil, errors.Wrap(err, "decode users")
		}
		return operations.GetAllUsersResponse{
			Users: lo.Map(users, func(u userJSON, _ int) operations.UserAndMetadata { return u.user() }),
		}, nil
	case operations.GetRolesRequest:
		var roles []roleJSON
		if err := json.Unmarshal(body, &roles); err != nil {
			return nil, errors.Wrap(err, "decode roles")
		}
		return operations.GetRolesResponse{
			Roles: lo.Map(roles, func(r roleJSON, _ int) operations.RoleAndDescription {
				return operations.RoleAndDescription{Role: r.role(), DisplayName: r.Name, Description: r.Desc}
			}),
		}, nil
	case operations.GetGroupRequest:
		var g groupJSON
		if err := json.Unmarshal(body, &g); err != nil {
			return nil, errors.Wrap(err, "decode group")
		}
		return operations.GetGroupResponse{Group: g.group()}, nil
	case operations.GetAllGroupsRequest:
		var groups []groupJSON
		if err := json.Unmarshal(body, &groups); err != nil {
			return nil, errors.Wrap(err, "decode groups")
		}
		return operations.GetAllGroupsResponse{
			Groups: lo.Map(groups, func(g groupJSON, _ int) operations.Group { return g.group() }),
		}, nil
	case operations.GetDesignDocumentRequest:
		if !gjson.ValidBytes(body) {
			return nil, errors.New("decode design document: invalid JSON")
		}
		doc := gjson.ParseBytes(body)
		out := designDocument(storedName(r.DocumentName, r.Namespace), doc.Get("_rev").String(), doc.Get("views"))
		out.Namespace = r.Namespace
		return operations.GetDesignDocumentResponse{Document: out}, nil
	case operations.GetAllDesignDocumentsRequest:
		if !gjson.ValidBytes(body) {
			return nil, errors.New("decode design documents: invalid JSON")
		}
		docs := []operations.DesignDocument{}
		gjson.GetBytes(body, "rows").ForEach(func(_, row gjson.Result) bool {
			doc := designDocument(row.Get("doc.meta.id").String(), row.Get("doc.meta.rev").String(), row.Get("doc.json.views"))
			if doc.Namespace == r.Namespace {
				docs = append(docs, doc)
			}
			return true
		})
		return operations.GetAllDesignDocumentsResponse{Documents: docs}, nil
	default:
		return nil, core.Coded(core.ErrUnsupportedOperation, errors.Newf("no decoder for %T", req))
	}
}

// statusCode maps a non-2xx HTTP status onto a native error code.
func statusCode(rt route, status int) error {
	switch {
	case status == http.StatusNotFound && rt.notFound != nil:
		return rt.notFound
	case status == http.StatusBadRequest:
		return core.ErrInvalidArgument
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return core.ErrAuthenticationFailure
	case status == http.StatusNotImplemented:
		return core.ErrFeatureNotAvailable
	case status == http.StatusServiceUnavailable:
		return core.ErrServiceNotAvailable
	default:
		return core.ErrInternalServerFailure
	}
}

// validationMessages flattens a 400 body of the form {"errors":{"field":"msg"}}
// into "field - msg" lines, in body order. Array-valued errors are kept as is.
func validationMessages(body []byte) []string {
	errs := gjson.GetBytes(body, "errors")
	msgs := []string{}
	switch {
	case errs.IsObject():
		errs.ForEach(func(field, msg gjson.Result) bool {
			msgs = append(msgs, field.String()+" - "+msg.String())
			return true
		})
	case errs.IsArray():
		errs.ForEach(func(_, msg gjson.Result) bool {
			msgs = append(msgs, msg.String())
			return true
		})
	}
	return msgs
}

// failedResponse builds the error response for a non-2xx reply.
func failedResponse(req operations.Request, ctx core.ErrorContext, body []byte) operations.Response {
	resp := operations.ErrorResponse(req, ctx)
	if ctx.HTTP == nil || ctx.HTTP.HTTPStatus != http.StatusBadRequest {
		return resp
	}
	switch r := resp.(type) {
	case operations.UpsertUserResponse:
		r.Errors = validationMessages(body)
		return r
	case operations.UpsertGroupResponse:
		r.Errors = validationMessages(body)
		return r
	}
	return resp
}
