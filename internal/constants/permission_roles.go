package constants

// PermissionRoles maps each permission to the organizer roles allowed to
// perform it. The engine never implements role logic beyond this lookup;
// role assignment itself belongs to the auth subsystem.
var PermissionRoles = map[string][]string{
	ViewData:      {Viewer, Manager, Admin, Superadmin},
	ManageHolds:   {Manager, Admin, Superadmin},
	ManageLinks:   {Manager, Admin, Superadmin},
	ViewAnalytics: {Admin, Superadmin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
