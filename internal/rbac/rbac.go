package rbac

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead     Action = "read"
	ActionWrite    Action = "write"
	ActionAnnotate Action = "annotate"
	ActionUpload   Action = "upload"
	ActionDelete   Action = "delete"
	ActionAdmin    Action = "admin"
)

// Can reports whether role may perform action. Viewers read; editors write, upload, annotate
// and delete single records; admins additionally bulk-delete.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionWrite || action == ActionAnnotate ||
			action == ActionUpload || action == ActionDelete
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleEditor, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
