package users

import (
	"time"

	"github.com/rolegate/rolegate/internal/rbac"
)

// User is a principal: an account that holds roles and is
// authorization-checked through them. The embedded Authorizer is bound by
// the repository on load, so a loaded User answers Is/Can/HasPermission
// directly.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time

	*rbac.Authorizer
}
