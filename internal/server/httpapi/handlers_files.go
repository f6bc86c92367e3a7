package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dpavlovs/filegate/internal/server/models"
)

// fileView is the outward shape of a file record. Locators stay internal;
// clients address files by derived key only.
type fileView struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	ContentType string    `json:"content_type"`
	Folder      string    `json:"folder"`
	IsEncrypted bool      `json:"is_encrypted"`
	Size        int64     `json:"size"`
	ModifiedAt  time.Time `json:"modified_at"`
}

func toFileView(rec *models.FileRecord) fileView {
	return fileView{
		Key:         rec.Key(),
		DisplayName: rec.DisplayName,
		ContentType: rec.ContentType,
		Folder:      rec.Folder,
		IsEncrypted: rec.IsEncrypted,
		Size:        rec.Size,
		ModifiedAt:  rec.ModifiedAt,
	}
}

func toFileViews(records []*models.FileRecord) []fileView {
	views := make([]fileView, 0, len(records))
	for _, rec := range records {
		views = append(views, toFileView(rec))
	}
	return views
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	ident, err := s.currentIdentity(c)
	if err != nil {
		return err
	}
	owner, err := s.scopeFor(c, ident)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	contentType := fh.Header.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}

	rec, err := s.files.Upload(c.UserContext(), owner, fh.Filename, contentType, c.FormValue("folder"), f)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toFileView(rec))
}

func (s *Server) handleList(c *fiber.Ctx) error {
	ident, err := s.currentIdentity(c)
	if err != nil {
		return err
	}
	records, err := s.files.List(c.UserContext(), ident.ID)
	if err != nil {
		return err
	}
	return c.JSON(toFileViews(records))
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	ident, err := s.currentIdentity(c)
	if err != nil {
		return err
	}
	records, err := s.files.Search(c.UserContext(), ident.ID, c.Query("q"))
	if err != nil {
		return err
	}
	return c.JSON(toFileViews(records))
}

type bulkRequest struct {
	Keys   []string `json:"keys"`
	Folder string   `json:"folder"`
}

func (s *Server) handleBulkDelete(c *fiber.Ctx) error {
	ident, err := s.currentIdentity(c)
	if err != nil {
		return err
	}
	owner, err := s.scopeFor(c, ident)
	if err != nil {
		return err
	}

	var req bulkRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return c.JSON(s.files.BulkDelete(c.UserContext(), owner, req.Keys))
}

func (s *Server) handleBulkMove(c *fiber.Ctx) error {
	ident, err := s.currentIdentity(c)
	if err != nil {
		return err
	}
	owner, err := s.scopeFor(c, ident)
	if err != nil {
		return err
	}

	var req bulkRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return c.JSON(s.files.BulkMove(c.UserContext(), owner, req.Keys, req.Folder))
}

type passphraseRequest struct {
	Passphrase string `json:"passphrase"`
}

func (s *Server) handleEncrypt(c *fiber.Ctx) error {
	return s.handleRecrypt(c, s.files.Encrypt)
}

func (s *Server) handleDecrypt(c *fiber.Ctx) error {
	return s.handleRecrypt(c, s.files.Decrypt)
}

func (s *Server) handleRecrypt(c *fiber.Ctx, op func(ctx context.Context, owner models.OwnerID, key, passphrase string) error) error {
	ident, err := s.currentIdentity(c)
	if err != nil {
		return err
	}
	owner, err := s.scopeFor(c, ident)
	if err != nil {
		return err
	}

	var req passphraseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Passphrase == "" {
		return fiber.NewError(fiber.StatusBadRequest, "passphrase is required")
	}

	if err := op(c.UserContext(), owner, c.Params("key"), req.Passphrase); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type exclusionsRequest struct {
	Excluded []models.OwnerID `json:"excluded"`
}

func (s *Server) handleSetExclusions(c *fiber.Ctx) error {
	var req exclusionsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.files.SetExclusions(c.UserContext(), c.Params("key"), req.Excluded); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type folderRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

func (s *Server) handleCreateFolder(c *fiber.Ctx) error {
	ident, err := s.currentIdentity(c)
	if err != nil {
		return err
	}
	owner, err := s.scopeFor(c, ident)
	if err != nil {
		return err
	}

	var req folderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.files.CreateFolder(c.UserContext(), owner, req.Name, req.Location); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusCreated)
}

func (s *Server) handleDeleteFolder(c *fiber.Ctx) error {
	ident, err := s.currentIdentity(c)
	if err != nil {
		return err
	}
	owner, err := s.scopeFor(c, ident)
	if err != nil {
		return err
	}
	if err := s.files.DeleteFolder(c.UserContext(), owner, c.Params("name")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleListFolders(c *fiber.Ctx) error {
	ident, err := s.currentIdentity(c)
	if err != nil {
		return err
	}
	owner, err := s.scopeFor(c, ident)
	if err != nil {
		return err
	}
	folders, err := s.files.ListFolders(c.UserContext(), owner)
	if err != nil {
		return err
	}
	return c.JSON(folders)
}
