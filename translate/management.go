package translate

import (
	"github.com/samber/lo"

	"github.com/DrewBradfordXYZ/cbmgmt-go/operations"
)

// nested encodes a sub-record as a mapping-valued field.
func nested[T, U any](get func(T) U, encode func(U) (map[string]any, error)) func(T) (any, bool, error) {
	return func(v T) (any, bool, error) {
		m, err := encode(get(v))
		return m, err == nil, err
	}
}

// list encodes an ordered sequence of sub-records as a list-valued field.
func list[T, U any](get func(T) []U, encode func(U) (map[string]any, error)) func(T) (any, bool, error) {
	return func(v T) (any, bool, error) {
		l, err := encodeList(get(v), encode)
		return l, err == nil, err
	}
}

// set encodes a string collection as a Set-valued field.
func set[T any](get func(T) []string) func(T) (any, bool, error) {
	return func(v T) (any, bool, error) {
		s, err := stringSet(get(v))
		return s, err == nil, err
	}
}

var roleFields = []fieldMapping[operations.Role]{
	{key: "name", encode: requiredString(func(r operations.Role) string { return r.Name })},
	{key: "bucket_name", optional: true, encode: optionalString(func(r operations.Role) *string { return r.Bucket })},
	{key: "scope_name", optional: true, encode: optionalString(func(r operations.Role) *string { return r.Scope })},
	{key: "collection_name", optional: true, encode: optionalString(func(r operations.Role) *string { return r.Collection })},
}

var roleDescriptionFields = []fieldMapping[operations.RoleAndDescription]{
	{key: "display_name", encode: requiredString(func(r operations.RoleAndDescription) string { return r.DisplayName })},
	{key: "description", encode: requiredString(func(r operations.RoleAndDescription) string { return r.Description })},
}

var originFields = []fieldMapping[operations.Origin]{
	{key: "type", encode: requiredString(func(o operations.Origin) string { return o.Type })},
	{key: "name", optional: true, encode: optionalString(func(o operations.Origin) *string { return o.Name })},
}

var roleAndOriginsFields = []fieldMapping[operations.RoleAndOrigins]{
	{key: "role", encode: nested(func(r operations.RoleAndOrigins) operations.Role { return r.Role }, EncodeRole)},
	{key: "origins", encode: list(func(r operations.RoleAndOrigins) []operations.Origin { return r.Origins }, encodeOrigin)},
}

var userFields = []fieldMapping[operations.User]{
	{key: "username", encode: requiredString(func(u operations.User) string { return u.Username })},
	{key: "display_name", optional: true, encode: optionalString(func(u operations.User) *string { return u.DisplayName })},
	{key: "groups", encode: set(func(u operations.User) []string { return u.Groups })},
	{key: "roles", encode: list(func(u operations.User) []operations.Role { return u.Roles }, EncodeRole)},
}

var userAndMetadataFields = []fieldMapping[operations.UserAndMetadata]{
	{key: "user", encode: nested(func(u operations.UserAndMetadata) operations.User { return u.User }, EncodeUser)},
	{key: "domain", encode: requiredString(func(u operations.UserAndMetadata) string { return FormatAuthDomain(u.Domain) })},
	{key: "effective_roles", encode: list(func(u operations.UserAndMetadata) []operations.RoleAndOrigins { return u.EffectiveRoles }, EncodeRoleAndOrigins)},
	{key: "password_changed", optional: true, encode: optionalString(func(u operations.UserAndMetadata) *string { return u.PasswordChanged })},
	{key: "external_groups", encode: set(func(u operations.UserAndMetadata) []string { return u.ExternalGroups })},
}

var groupFields = []fieldMapping[operations.Group]{
	{key: "name", encode: requiredString(func(g operations.Group) string { return g.Name })},
	{key: "description", optional: true, encode: optionalString(func(g operations.Group) *string { return g.Description })},
	{key: "roles", encode: list(func(g operations.Group) []operations.Role { return g.Roles }, EncodeRole)},
	{key: "ldap_group_reference", optional: true, encode: optionalString(func(g operations.Group) *string { return g.LDAPGroupReference })},
}

// EncodeRole encodes a role using the write-form keys (bucket_name, scope_name, collection_name).
func EncodeRole(r operations.Role) (map[string]any, error) {
	return encodeWith(r, roleFields)
}

// EncodeRoleAndDescription encodes a catalogue role: the role keys plus display_name and description.
func EncodeRoleAndDescription(r operations.RoleAndDescription) (map[string]any, error) {
	m, err := EncodeRole(r.Role)
	if err != nil {
		return nil, err
	}
	extra, err := encodeWith(r, roleDescriptionFields)
	if err != nil {
		return nil, err
	}
	return lo.Assign(m, extra), nil
}

func encodeOrigin(o operations.Origin) (map[string]any, error) {
	return encodeWith(o, originFields)
}

// EncodeRoleAndOrigins encodes an effective role as {role, origins}.
func EncodeRoleAndOrigins(r operations.RoleAndOrigins) (map[string]any, error) {
	return encodeWith(r, roleAndOriginsFields)
}

// EncodeUser encodes a user. The password is never encoded.
func EncodeUser(u operations.User) (map[string]any, error) {
	return encodeWith(u, userFields)
}

// EncodeUserAndMetadata encodes a user as read back from the server.
func EncodeUserAndMetadata(u operations.UserAndMetadata) (map[string]any, error) {
	return encodeWith(u, userAndMetadataFields)
}

// EncodeGroup encodes a group; unset optionals are omitted.
func EncodeGroup(g operations.Group) (map[string]any, error) {
	return encodeWith(g, groupFields)
}

// ParseAuthDomain maps "external" to the external domain and anything else to local.
func ParseAuthDomain(s string) operations.AuthDomain {
	if s == "external" {
		return operations.AuthDomainExternal
	}
	return operations.AuthDomainLocal
}

// FormatAuthDomain returns "local", "external", or "unknown" for values outside the two domains.
func FormatAuthDomain(d operations.AuthDomain) string {
	switch d {
	case operations.AuthDomainLocal:
		return "local"
	case operations.AuthDomainExternal:
		return "external"
	default:
		return "unknown"
	}
}

// DecodeRole reads a role in read form (name, bucket, scope, collection).
// A missing name yields an empty name.
func DecodeRole(m map[string]any) operations.Role {
	name, _ := getString(m, "name")
	return operations.Role{
		Name:       name,
		Bucket:     getOptString(m, "bucket"),
		Scope:      getOptString(m, "scope"),
		Collection: getOptString(m, "collection"),
	}
}

func decodeRoles(m map[string]any, key string) []operations.Role {
	return lo.Map(getMaps(m, key), func(item map[string]any, _ int) operations.Role {
		return DecodeRole(item)
	})
}

// DecodeUser reads a user. Roles keep their order; duplicate groups collapse.
func DecodeUser(m map[string]any) operations.User {
	username, _ := getString(m, "username")
	return operations.User{
		Username:    username,
		DisplayName: getOptString(m, "name"),
		Password:    getOptString(m, "password"),
		Roles:       decodeRoles(m, "roles"),
		Groups:      uniqueSorted(getStrings(m, "groups")),
	}
}

// DecodeGroup reads a group. Roles keep their order and are not deduplicated.
func DecodeGroup(m map[string]any) operations.Group {
	name, _ := getString(m, "name")
	return operations.Group{
		Name:               name,
		Description:        getOptString(m, "description"),
		Roles:              decodeRoles(m, "roles"),
		LDAPGroupReference: getOptString(m, "ldap_group_reference"),
	}
}
