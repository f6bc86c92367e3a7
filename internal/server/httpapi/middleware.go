package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/server/auth"
	"github.com/dpavlovs/filegate/internal/server/identity"
	"github.com/dpavlovs/filegate/internal/server/models"
)

// authenticate verifies the bearer access token and stashes the resulting
// identity in the request context. Every route requires it; this service
// has no anonymous surface.
func (s *Server) authenticate(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenString == "" {
		return common.ErrUnauthorized
	}

	claims, err := auth.ParseToken(tokenString, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	c.SetUserContext(identity.WithIdentity(c.UserContext(), identity.FromClaims(claims)))
	return c.Next()
}

// currentIdentity is a convenience over the provider; authenticate
// guarantees the identity is present on every route.
func (s *Server) currentIdentity(c *fiber.Ctx) (identity.Identity, error) {
	ident, ok := s.provider.CurrentIdentity(c.UserContext())
	if !ok {
		return identity.Identity{}, common.ErrUnauthorized
	}
	return ident, nil
}

func (s *Server) requireAdmin(handler fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ident, err := s.currentIdentity(c)
		if err != nil {
			return err
		}
		if !ident.Admin {
			return common.ErrUnauthorized
		}
		return handler(c)
	}
}

// requireShared gates routes that always operate on the shared space.
func (s *Server) requireShared(handler fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ident, err := s.currentIdentity(c)
		if err != nil {
			return err
		}
		if !ident.HasCapability(CapabilityManageShared) {
			return common.ErrUnauthorized
		}
		return handler(c)
	}
}

// scopeFor resolves which owner scope a management request addresses: the
// caller's own space by default, or the shared space when scope=shared is
// passed and the caller may manage it.
func (s *Server) scopeFor(c *fiber.Ctx, ident identity.Identity) (models.OwnerID, error) {
	scope := c.Query("scope")
	if scope == "" {
		scope = c.FormValue("scope")
	}
	switch scope {
	case "", "own":
		return ident.ID, nil
	case "shared":
		if !ident.HasCapability(CapabilityManageShared) {
			return 0, common.ErrUnauthorized
		}
		return models.SharedOwner, nil
	default:
		return 0, fiber.NewError(fiber.StatusBadRequest, "unknown scope")
	}
}
