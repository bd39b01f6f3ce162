package domain

import (
	"context"

	"github.com/Skotchmaster/bookstore/internal/models"
)

// Principal is the authenticated caller of one request.
type Principal struct {
	UserID   uint
	Username string
	Role     models.Role
}

func (p Principal) IsAdmin() bool {
	switch p.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCustomer:
		return false
	default:
		return false
	}
}

// CanAccessUser reports whether p may read data owned by userID.
func (p Principal) CanAccessUser(userID uint) bool {
	return p.IsAdmin() || p.UserID == userID
}

type principalKey struct{}

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
