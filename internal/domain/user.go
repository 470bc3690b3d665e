package domain

import "time"

// UserRole enumerates the three helpdesk roles.
type UserRole string

const (
	RoleClient UserRole = "CLIENT"
	RoleAgent  UserRole = "AGENT"
	RoleAdmin  UserRole = "ADMIN"
)

// User models any participant: clients open tickets, agents resolve them,
// admins oversee the queue.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	// Skills lists category ids an agent may claim tickets from. Empty for
	// clients and admins.
	Skills    []string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSkill reports whether the agent covers the given category.
func (u *User) HasSkill(categoryID string) bool {
	for _, s := range u.Skills {
		if s == categoryID {
			return true
		}
	}
	return false
}
