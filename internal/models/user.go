package models

// UserRole classifies what a user does on the team.
type UserRole string

const (
	UserRoleAdmin     UserRole = "admin"
	UserRoleDeveloper UserRole = "developer"
	UserRoleQA        UserRole = "qa"
	UserRoleManager   UserRole = "manager"
	UserRoleViewer    UserRole = "viewer"
)

// User represents a member of the bug tracking team. Users are seeded at
// startup and are never modified or removed afterwards.
type User struct {
	ID     string
	Name   string
	Email  string
	Avatar string
	Role   UserRole
}
