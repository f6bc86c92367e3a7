package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/cryptox"
	"github.com/dpavlovs/filegate/internal/logging"
	"github.com/dpavlovs/filegate/internal/server/auth"
	"github.com/dpavlovs/filegate/internal/server/authz"
	"github.com/dpavlovs/filegate/internal/server/identity"
	"github.com/dpavlovs/filegate/internal/server/models"
	"github.com/dpavlovs/filegate/internal/server/registry"
	"github.com/dpavlovs/filegate/internal/server/storage"
)

// Mode is the closed enumeration of delivery modes a download request can
// ask for. Parsing rejects anything outside the enumeration; there is no
// default branch to fall through.
type Mode int

const (
	ModePlain Mode = iota + 1
	ModeEncrypted
)

// ParseMode maps the request-supplied mode string onto the enumeration.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "plain", "":
		return ModePlain, nil
	case "encrypted":
		return ModeEncrypted, nil
	default:
		return 0, fmt.Errorf("unknown download mode %q", s)
	}
}

var (
	// ErrEncryptedMode rejects a plain-mode request for an encrypted record.
	ErrEncryptedMode = errors.New("encrypted file: must use encrypted mode")

	// ErrPassphraseRequired rejects an encrypted-mode request without a
	// passphrase.
	ErrPassphraseRequired = errors.New("passphrase required")
)

// Delivery is what the dispatcher hands the transport layer: either a
// redirect to a presigned URL or a direct byte stream. Closed variant.
type Delivery interface {
	isDelivery()
}

// Redirect sends the client straight to the object store; the application
// never proxies the bytes.
type Redirect struct {
	URL string
}

// Stream carries bytes through the application with the headers the
// transport must set before writing the first byte.
type Stream struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

func (Redirect) isDelivery() {}
func (Stream) isDelivery()   {}

// Request is one download dispatch.
type Request struct {
	Key        string
	Mode       Mode
	Owner      models.OwnerID // owner scope to search; shared is always searched too
	Passphrase string
	Token      string // anti-forgery token
	ClientIP   string
}

// DownloadService is the stateless router over the delivery handlers.
type DownloadService struct {
	finder     *registry.Finder
	backend    storage.Backend
	audit      *AuditService
	secret     []byte
	presignTTL time.Duration
	logger     logging.Logger
}

func NewDownloadService(finder *registry.Finder, backend storage.Backend, auditSvc *AuditService, secret []byte, presignTTL time.Duration, logger logging.Logger) *DownloadService {
	return &DownloadService{
		finder:     finder,
		backend:    backend,
		audit:      auditSvc,
		secret:     secret,
		presignTTL: presignTTL,
		logger:     logger.With("module", "download"),
	}
}

// ActionDownload scopes the anti-forgery tokens this dispatcher accepts.
const ActionDownload = "download"

// Dispatch runs the full pipeline: token check, resolution, authorization,
// then the mode handler. The anti-forgery token is verified before any
// authorization or I/O work; an invalid token aborts with no partial work.
// Authorization failures are reported as common.ErrNotFound so existence
// never leaks. Every successful delivery appends one audit entry.
func (s *DownloadService) Dispatch(ctx context.Context, requester identity.Identity, req Request) (Delivery, error) {
	if err := auth.VerifyActionToken(req.Token, requester.ID, ActionDownload, s.secret); err != nil {
		return nil, err
	}

	rec, scope, err := s.finder.FindByKey(ctx, req.Key, req.Owner, true)
	if err != nil {
		return nil, err
	}
	if !authz.Authorize(rec, scope, requester.ID, requester.Admin) {
		return nil, common.ErrNotFound
	}

	var delivery Delivery
	switch req.Mode {
	case ModePlain:
		delivery, err = s.plain(ctx, rec)
	case ModeEncrypted:
		delivery, err = s.encrypted(ctx, rec, req.Passphrase)
	default:
		return nil, fmt.Errorf("unknown download mode %d", req.Mode)
	}
	if err != nil {
		return nil, err
	}

	// point of no return: the delivery will be issued, record it
	s.audit.Record(ctx, requester.ID, rec.DisplayName, req.ClientIP)
	s.logger.Info(ctx, "file delivered", "file", rec.DisplayName, "identity", requester.ID, "mode", req.Mode)

	return delivery, nil
}

// plain delivers the bytes as stored: a presigned redirect for objects, a
// direct stream for local files. Encrypted records are rejected; their
// ciphertext is useless without the decrypt step.
func (s *DownloadService) plain(ctx context.Context, rec *models.FileRecord) (Delivery, error) {
	if rec.IsEncrypted {
		return nil, ErrEncryptedMode
	}

	switch rec.Locator.(type) {
	case models.ObjectKey:
		url, err := s.backend.PresignedURL(ctx, rec.Locator, rec.DisplayName, s.presignTTL)
		if err != nil {
			return nil, err
		}
		return Redirect{URL: url}, nil

	case models.LocalPath:
		streamer, ok := s.backend.(storage.Streamer)
		if !ok {
			return nil, fmt.Errorf("backend cannot stream local files: %w", common.ErrNotSupported)
		}
		body, info, err := streamer.Open(ctx, rec.Locator)
		if err != nil {
			return nil, err
		}
		return Stream{
			Name:        rec.DisplayName,
			ContentType: rec.ContentType,
			Size:        info.Size,
			Body:        body,
		}, nil

	default:
		return nil, common.ErrInternal
	}
}

// encrypted fetches the full ciphertext, decrypts it in memory, and streams
// the plaintext. Decrypted bytes are never persisted.
func (s *DownloadService) encrypted(ctx context.Context, rec *models.FileRecord, passphrase string) (Delivery, error) {
	if !rec.IsEncrypted {
		return nil, ErrNotEncrypted
	}
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}

	blob, err := s.backend.Get(ctx, rec.Locator)
	if err != nil {
		return nil, err
	}

	plaintext, err := cryptox.Decrypt(blob, passphrase)
	if err != nil {
		return nil, err
	}

	return Stream{
		Name:        rec.DisplayName,
		ContentType: rec.ContentType,
		Size:        int64(len(plaintext)),
		Body:        io.NopCloser(bytes.NewReader(plaintext)),
	}, nil
}
