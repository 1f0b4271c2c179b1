package models

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// Principal is the authenticated caller resolved from the bearer token.
type Principal struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Role UserRole `json:"role"`
}

func (p *Principal) IsStudent() bool {
	return p != nil && p.Role == RoleStudent
}

// CanAuthor reports whether the caller may create tests and read results.
func (p *Principal) CanAuthor() bool {
	return p != nil && (p.Role == RoleTeacher || p.Role == RoleAdmin)
}
