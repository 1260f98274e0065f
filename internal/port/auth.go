package port

import (
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// IssuedToken is a signed access token and the claims needed to revoke it.
type IssuedToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

type TokenManager interface {
	Issue(user *domain.User) (*IssuedToken, error)
	// Verify checks signature, issuer, audience and expiry. It does not
	// consult the revocation list.
	Verify(token string) (*domain.Principal, time.Time, error)
}
