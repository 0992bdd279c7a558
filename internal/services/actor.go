package services

import "github.com/huangang/fundgate/internal/models"

// Actor is the authenticated caller of an operation
type Actor struct {
	UserID uint
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

func requireAdmin(a Actor) error {
	if !a.IsAdmin() {
		return forbiddenErr("admin role required")
	}
	return nil
}
