package httpapi

import (
	"fmt"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/dpavlovs/filegate/internal/server/auth"
	"github.com/dpavlovs/filegate/internal/server/models"
	"github.com/dpavlovs/filegate/internal/server/services"
)

type actionTokenRequest struct {
	Action string `json:"action"`
}

// handleActionToken mints a short-lived anti-forgery token for the caller.
// The download and bundle endpoints refuse to act without one.
func (s *Server) handleActionToken(c *fiber.Ctx) error {
	ident, err := s.currentIdentity(c)
	if err != nil {
		return err
	}

	var req actionTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	switch req.Action {
	case services.ActionDownload, services.ActionBundle:
	default:
		return fiber.NewError(fiber.StatusBadRequest, "unknown action")
	}

	token, err := auth.GenerateActionToken(ident.ID, req.Action, []byte(s.cfg.SecretKey), s.cfg.ActionTokenValidityDuration)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"token": token})
}

func (s *Server) handleDownload(c *fiber.Ctx) error {
	ident, err := s.currentIdentity(c)
	if err != nil {
		return err
	}

	mode, err := services.ParseMode(c.Query("mode"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	// owner selects which private scope to resolve the key in; it defaults
	// to the caller's own. Resolving a foreign scope still passes through
	// the authorization gate, which denies non-admins as not-found.
	owner := ident.ID
	if raw := c.Query("owner"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid owner")
		}
		owner = models.OwnerID(parsed)
	}

	delivery, err := s.downloads.Dispatch(c.UserContext(), ident, services.Request{
		Key:        c.Query("key"),
		Mode:       mode,
		Owner:      owner,
		Passphrase: c.Query("passphrase"),
		Token:      c.Query("token"),
		ClientIP:   c.IP(),
	})
	if err != nil {
		return err
	}

	switch d := delivery.(type) {
	case services.Redirect:
		return c.Redirect(d.URL, fiber.StatusFound)
	case services.Stream:
		return s.sendStream(c, d)
	default:
		return fmt.Errorf("unexpected delivery type %T", delivery)
	}
}

// sendStream writes the delivery headers and hands the body to fasthttp,
// which closes it once the response is sent. Sizes that do not fit the
// platform int (files over 2 GiB on 32-bit) are sent chunked instead of
// truncating the Content-Length.
func (s *Server) sendStream(c *fiber.Ctx, stream services.Stream) error {
	c.Set(fiber.HeaderContentType, stream.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", stream.Name))
	if stream.Size > 0 && stream.Size <= math.MaxInt {
		return c.SendStream(stream.Body, int(stream.Size))
	}
	return c.SendStream(stream.Body)
}

type bundleRequest struct {
	Keys  []string `json:"keys"`
	Token string   `json:"token"`
}

func (s *Server) handleBundleRequest(c *fiber.Ctx) error {
	ident, err := s.currentIdentity(c)
	if err != nil {
		return err
	}

	var req bundleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.bundles.Enqueue(c.UserContext(), ident, req.Keys, req.Token); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "queued"})
}

func (s *Server) handleBundleList(c *fiber.Ctx) error {
	ident, err := s.currentIdentity(c)
	if err != nil {
		return err
	}
	bundles, err := s.bundles.List(c.UserContext(), ident.ID)
	if err != nil {
		return err
	}
	return c.JSON(bundles)
}

func (s *Server) handleBundleOpen(c *fiber.Ctx) error {
	ident, err := s.currentIdentity(c)
	if err != nil {
		return err
	}
	stream, err := s.bundles.Open(c.UserContext(), ident, c.Params("filename"), c.Query("token"))
	if err != nil {
		return err
	}
	return s.sendStream(c, *stream)
}

// handleStatus reports operational details for admins.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	lastSweep, err := s.bundles.LastSweep(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"last_sweep": lastSweep})
}

func (s *Server) handleAuditQuery(c *fiber.Ctx) error {
	entries, total, err := s.audit.Query(c.UserContext(), c.QueryInt("page", 1), c.QueryInt("page_size", 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"entries": entries, "total": total})
}
