// Package identity is the boundary to the external identity/auth provider.
// The core never manages passwords, sessions, or roles itself; it only
// consumes who the caller is, whether they are an admin, and what
// capabilities they hold.
package identity

import (
	"context"

	"github.com/dpavlovs/filegate/internal/server/auth"
	"github.com/dpavlovs/filegate/internal/server/models"
)

// Identity describes an authenticated caller.
type Identity struct {
	ID           models.OwnerID
	Admin        bool
	Capabilities []string
}

// HasCapability reports whether the identity carries the named capability.
// Admins implicitly hold every capability.
func (i Identity) HasCapability(capability string) bool {
	if i.Admin {
		return true
	}
	for _, c := range i.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Provider yields the current identity for a request context.
type Provider interface {
	// CurrentIdentity returns the caller's identity, or ok=false when the
	// request is anonymous.
	CurrentIdentity(ctx context.Context) (Identity, bool)
}

type ctxKey struct{}

// WithIdentity stashes an identity in the context. Used by the HTTP
// middleware after verifying the access token.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ContextProvider reads the identity the middleware put in the context.
type ContextProvider struct{}

func (ContextProvider) CurrentIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// FromClaims converts verified token claims into an Identity.
func FromClaims(c *auth.Claims) Identity {
	return Identity{ID: c.IdentityID, Admin: c.Admin, Capabilities: c.Capabilities}
}
