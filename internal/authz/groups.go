package authz

// Content permissions.
const (
	PermCreatePost       = "create_post"
	PermEditOwnPost      = "edit_own_post"
	PermDeleteOwnPost    = "delete_own_post"
	PermPublishPost      = "publish_post"
	PermEditOthersPost   = "edit_others_post"
	PermDeleteOthersPost = "delete_others_post"
	PermModerateComments = "moderate_comments"
	PermManageCategories = "manage_categories"
	PermManageTags       = "manage_tags"
)

// User management permissions.
const (
	PermListUsers  = "list_users"
	PermCreateUser = "create_user"
	PermEditUser   = "edit_user"
	PermDeleteUser = "delete_user"
)

// Role management permissions.
const (
	PermAssignRoles = "assign_roles"
	PermCreateRole  = "create_role"
	PermEditRole    = "edit_role"
	PermDeleteRole  = "delete_role"
)

// Administration permissions.
const (
	PermAccessAdmin    = "access_admin"
	PermManageSettings = "manage_settings"
)

// Group names of the permission taxonomy. Grouping is presentation
// metadata only and never affects authorization decisions.
const (
	GroupContent = "content"
	GroupUsers   = "users"
	GroupRoles   = "roles"
	GroupAdmin   = "admin"
)

// PermissionGroup bundles a group's label with its member permissions.
type PermissionGroup struct {
	Name        string
	DisplayName string
	Permissions []string
}

var permissionGroups = []PermissionGroup{
	{
		Name:        GroupContent,
		DisplayName: "Content",
		Permissions: []string{
			PermCreatePost,
			PermEditOwnPost,
			PermDeleteOwnPost,
			PermPublishPost,
			PermEditOthersPost,
			PermDeleteOthersPost,
			PermModerateComments,
			PermManageCategories,
			PermManageTags,
		},
	},
	{
		Name:        GroupUsers,
		DisplayName: "Users",
		Permissions: []string{
			PermListUsers,
			PermCreateUser,
			PermEditUser,
			PermDeleteUser,
		},
	},
	{
		Name:        GroupRoles,
		DisplayName: "Roles",
		Permissions: []string{
			PermAssignRoles,
			PermCreateRole,
			PermEditRole,
			PermDeleteRole,
		},
	},
	{
		Name:        GroupAdmin,
		DisplayName: "Administration",
		Permissions: []string{
			PermAccessAdmin,
			PermManageSettings,
		},
	},
}

// Groups returns the permission group taxonomy in presentation order.
func Groups() []PermissionGroup {
	groups := make([]PermissionGroup, len(permissionGroups))
	copy(groups, permissionGroups)
	return groups
}

// GroupOf returns the group a permission belongs to, or the empty
// string for ungrouped permissions. A permission belongs to at most one
// group.
func GroupOf(permission string) string {
	for _, group := range permissionGroups {
		for _, name := range group.Permissions {
			if name == permission {
				return group.Name
			}
		}
	}
	return ""
}

// GroupPermissionNames returns the deduplicated permission names of the
// given groups, preserving taxonomy order.
func GroupPermissionNames(groups ...string) []string {
	want := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		want[g] = struct{}{}
	}
	seen := make(map[string]struct{})
	var names []string
	for _, group := range permissionGroups {
		if _, ok := want[group.Name]; !ok {
			continue
		}
		for _, name := range group.Permissions {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// CatalogNames returns every permission name in the taxonomy.
func CatalogNames() []string {
	return GroupPermissionNames(GroupContent, GroupUsers, GroupRoles, GroupAdmin)
}
