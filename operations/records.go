// Package operations declares the native management records, the request and
// response types exchanged with the native client, and the Executor boundary.
//
// All records are immutable snapshots: they are built fresh for each response
// and never mutated afterwards.
package operations

// Role is a named privilege, optionally scoped to a bucket, scope and collection.
//
// Scope and Collection are only meaningful when Bucket is set; this is not enforced.
type Role struct {
	Name       string
	Bucket     *string
	Scope      *string
	Collection *string
}

// String formats the role the way the server's RBAC endpoints accept it:
// name, then the bracketed bucket[:scope[:collection]] qualifier when scoped.
func (r Role) String() string {
	if r.Bucket == nil {
		return r.Name
	}
	qualifier := *r.Bucket
	if r.Scope != nil {
		qualifier += ":" + *r.Scope
		if r.Collection != nil {
			qualifier += ":" + *r.Collection
		}
	}
	return r.Name + "[" + qualifier + "]"
}

// RoleAndDescription is a role as listed by the server's role catalogue.
type RoleAndDescription struct {
	Role
	DisplayName string
	Description string
}

// Origin records why a user holds a role: directly ("user") or through a group.
type Origin struct {
	Type string
	Name *string
}

// RoleAndOrigins is an effective role with the ordered list of its origins.
type RoleAndOrigins struct {
	Role
	Origins []Origin
}

// AuthDomain is the authentication domain of a user.
type AuthDomain int

const (
	AuthDomainLocal AuthDomain = iota
	AuthDomainExternal
)

// User is an account definition.
//
// Password is write-only: it is never populated on read.
// Groups holds unique names in ascending order.
type User struct {
	Username    string
	DisplayName *string
	Password    *string
	Roles       []Role
	Groups      []string
}

// UserAndMetadata is a user as read back from the server.
type UserAndMetadata struct {
	User
	Domain          AuthDomain
	EffectiveRoles  []RoleAndOrigins
	PasswordChanged *string
	ExternalGroups  []string
}

// Group is a named role bundle.
type Group struct {
	Name               string
	Description        *string
	Roles              []Role
	LDAPGroupReference *string
}

// DesignDocumentNamespace selects development or production design documents.
type DesignDocumentNamespace int

const (
	NamespaceDevelopment DesignDocumentNamespace = iota
	NamespaceProduction
)

func (n DesignDocumentNamespace) String() string {
	if n == NamespaceProduction {
		return "production"
	}
	return "development"
}

// View is a single map/reduce view in a design document.
type View struct {
	Name   string
	Map    *string
	Reduce *string
}

// DesignDocument is a named set of views in a bucket.
type DesignDocument struct {
	Rev       string
	Name      string
	Namespace DesignDocumentNamespace
	Views     map[string]View
}
