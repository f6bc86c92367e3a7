package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/yeka/zip"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/filex"
	"github.com/dpavlovs/filegate/internal/logging"
	"github.com/dpavlovs/filegate/internal/server/auth"
	"github.com/dpavlovs/filegate/internal/server/authz"
	"github.com/dpavlovs/filegate/internal/server/identity"
	"github.com/dpavlovs/filegate/internal/server/metastore"
	"github.com/dpavlovs/filegate/internal/server/models"
	"github.com/dpavlovs/filegate/internal/server/registry"
	"github.com/dpavlovs/filegate/internal/server/storage"
	"github.com/dpavlovs/filegate/internal/shared"
)

var (
	// ErrNothingToBundle means no requested key survived resolution,
	// authorization, and the not-encrypted eligibility check. The job
	// publishes nothing.
	ErrNothingToBundle = errors.New("no files eligible for bundling")

	// ErrEmptyBundleRequest rejects a request naming no keys at all. This is
	// a malformed request, failed before anything is queued.
	ErrEmptyBundleRequest = errors.New("bundle request names no files")

	// ErrBundleQueueFull tells the caller to retry later; the worker is
	// saturated.
	ErrBundleQueueFull = errors.New("bundle queue is full, try again later")
)

// ActionBundle scopes the anti-forgery tokens for bundle requests and
// retrievals.
const ActionBundle = "bundle"

// lastSweepSingleton is the metastore key recording when the sweep last ran.
const lastSweepSingleton = "bundles_last_sweep"

type bundleJob struct {
	owner models.OwnerID
	keys  []string
}

// BundleService assembles password-protected multi-file archives in the
// background and serves them until they expire. Archives are written to a
// temporary directory outside any web-servable path; retrieval goes through
// the token-checked Open only.
type BundleService struct {
	finder    *registry.Finder
	backend   storage.Backend
	store     metastore.Store
	secret    []byte
	dir       string
	retention time.Duration
	jobs      chan bundleJob
	logger    logging.Logger
}

func NewBundleService(finder *registry.Finder, backend storage.Backend, store metastore.Store, secret []byte, dir string, retention time.Duration, logger logging.Logger) (*BundleService, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("bundle dir: %w", err)
	}
	return &BundleService{
		finder:    finder,
		backend:   backend,
		store:     store,
		secret:    secret,
		dir:       abs,
		retention: retention,
		jobs:      make(chan bundleJob, 16),
		logger:    logger.With("module", "bundles"),
	}, nil
}

// Enqueue validates the request and queues a build job. The job itself runs
// on the worker, outside the request/response cycle.
func (s *BundleService) Enqueue(ctx context.Context, requester identity.Identity, keys []string, token string) error {
	if err := auth.VerifyActionToken(token, requester.ID, ActionBundle, s.secret); err != nil {
		return err
	}
	if len(keys) == 0 {
		return ErrEmptyBundleRequest
	}

	select {
	case s.jobs <- bundleJob{owner: requester.ID, keys: keys}:
		return nil
	default:
		return ErrBundleQueueFull
	}
}

// Run consumes queued jobs until ctx is cancelled. An abandoned job leaves
// no published record; its partial temp file is reaped by the sweep.
func (s *BundleService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			if err := s.build(ctx, job); err != nil {
				s.logger.Warn(ctx, "bundle job failed", "owner", job.owner, "error", err)
			}
		}
	}
}

// build assembles one archive. Per-file fetch failures are logged and
// skipped; the job aborts as a whole only when nothing at all is eligible.
// Metadata is published only after a non-empty archive exists.
func (s *BundleService) build(ctx context.Context, job bundleJob) error {
	var eligible []*models.FileRecord
	for _, key := range job.keys {
		rec, scope, err := s.finder.FindByKey(ctx, key, job.owner, true)
		if err != nil {
			s.logger.Warn(ctx, "bundle member not found", "key", key, "owner", job.owner)
			continue
		}
		if !authz.Authorize(rec, scope, job.owner, false) {
			continue
		}
		// an encrypted member would need a second passphrase prompt
		if rec.IsEncrypted {
			continue
		}
		eligible = append(eligible, rec)
	}
	if len(eligible) == 0 {
		return ErrNothingToBundle
	}

	passphrase, err := shared.MakeRandHexString(16)
	if err != nil {
		return fmt.Errorf("passphrase: %w", err)
	}

	seg, err := shared.MakeRandHexString(4)
	if err != nil {
		return fmt.Errorf("filename: %w", err)
	}
	filename := fmt.Sprintf("bundle-%d-%d-%s.zip", job.owner, time.Now().Unix(), seg)

	path, err := filex.SafeJoin(s.dir, filename)
	if err != nil {
		return err
	}

	added, err := s.writeArchive(ctx, path, passphrase, eligible)
	if err != nil {
		os.Remove(path)
		return err
	}

	// a zero-entry or zero-length archive is a failure, not an empty success
	if info, err := os.Stat(path); added == 0 || err != nil || info.Size() == 0 {
		os.Remove(path)
		return ErrNothingToBundle
	}

	bundle := models.Bundle{Filename: filename, Passphrase: passphrase, CreatedAt: time.Now().UTC()}
	err = metastore.UpdateCollection(ctx, s.store, job.owner, metastore.CollectionBundles, func(bundles []models.Bundle) ([]models.Bundle, error) {
		return append(bundles, bundle), nil
	})
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("publish bundle: %w", err)
	}

	s.logger.Info(ctx, "bundle published", "owner", job.owner, "filename", filename, "files", added)
	return nil
}

func (s *BundleService) writeArchive(ctx context.Context, path, passphrase string, records []*models.FileRecord) (int, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	defer w.Close()

	added := 0
	seen := map[string]int{}
	for _, rec := range records {
		content, err := s.backend.Get(ctx, rec.Locator)
		if err != nil {
			s.logger.Warn(ctx, "bundle member fetch failed, skipping", "file", rec.DisplayName, "error", err)
			continue
		}

		name := rec.DisplayName
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%d-%s", n, name)
		}
		seen[rec.DisplayName]++

		// AES-256 per entry, never the legacy ZipCrypto default
		entry, err := w.Encrypt(name, passphrase, zip.AES256Encryption)
		if err != nil {
			return added, fmt.Errorf("archive entry %s: %w", name, err)
		}
		if _, err := entry.Write(content); err != nil {
			return added, fmt.Errorf("archive write %s: %w", name, err)
		}
		added++
	}

	if err := w.Close(); err != nil {
		return added, fmt.Errorf("finalize archive: %w", err)
	}
	return added, nil
}

// List returns the requester's published bundles, passphrases included.
// The passphrase is only ever shown to the bundle's owner.
func (s *BundleService) List(ctx context.Context, owner models.OwnerID) ([]models.Bundle, error) {
	return metastore.Collection[models.Bundle](ctx, s.store, owner, metastore.CollectionBundles)
}

// Open serves a published archive. Unknown and expired bundles are the same
// generic not-found.
func (s *BundleService) Open(ctx context.Context, requester identity.Identity, filename, token string) (*Stream, error) {
	if err := auth.VerifyActionToken(token, requester.ID, ActionBundle, s.secret); err != nil {
		return nil, err
	}

	bundles, err := s.List(ctx, requester.ID)
	if err != nil {
		return nil, err
	}

	var found *models.Bundle
	for i := range bundles {
		if bundles[i].Filename == filename {
			found = &bundles[i]
			break
		}
	}
	if found == nil || found.Expired(time.Now(), s.retention) {
		return nil, common.ErrNotFound
	}

	path, err := filex.SafeJoin(s.dir, filename)
	if err != nil {
		return nil, common.ErrNotFound
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, common.ErrNotFound
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, common.ErrNotFound
	}

	return &Stream{
		Name:        filename,
		ContentType: "application/zip",
		Size:        info.Size(),
		Body:        f,
	}, nil
}

// Sweep deletes expired bundles (file plus metadata entry) across all
// owners, then reaps orphaned archive files past the retention window that
// no metadata references. It iterates snapshots, so it is idempotent and
// safe to run concurrently with a new bundle being created.
func (s *BundleService) Sweep(ctx context.Context) error {
	now := time.Now()
	referenced := map[string]struct{}{}

	owners, err := s.store.OwnersWithCollection(ctx, metastore.CollectionBundles)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	for _, owner := range owners {
		snapshot, err := metastore.Collection[models.Bundle](ctx, s.store, owner, metastore.CollectionBundles)
		if err != nil {
			s.logger.Error(ctx, "sweep: cannot load bundles", "owner", owner, "error", err)
			continue
		}

		var expired []string
		for _, b := range snapshot {
			if !b.Expired(now, s.retention) {
				referenced[b.Filename] = struct{}{}
				continue
			}
			expired = append(expired, b.Filename)

			if path, err := filex.SafeJoin(s.dir, b.Filename); err == nil {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					s.logger.Error(ctx, "sweep: cannot remove archive", "filename", b.Filename, "error", err)
				}
			}
		}
		if len(expired) == 0 {
			continue
		}

		gone := map[string]struct{}{}
		for _, name := range expired {
			gone[name] = struct{}{}
		}
		err = metastore.UpdateCollection(ctx, s.store, owner, metastore.CollectionBundles, func(bundles []models.Bundle) ([]models.Bundle, error) {
			kept := bundles[:0]
			for _, b := range bundles {
				if _, ok := gone[b.Filename]; !ok {
					kept = append(kept, b)
				}
			}
			return kept, nil
		})
		if err != nil {
			s.logger.Error(ctx, "sweep: cannot update bundle list", "owner", owner, "error", err)
			continue
		}
		s.logger.Info(ctx, "sweep: removed expired bundles", "owner", owner, "count", len(expired))
	}

	s.reapOrphans(ctx, now, referenced)

	if raw, err := json.Marshal(now.UTC()); err == nil {
		if err := s.store.SetSingleton(ctx, lastSweepSingleton, raw); err != nil {
			s.logger.Warn(ctx, "sweep: cannot record sweep time", "error", err)
		}
	}
	return nil
}

// LastSweep returns when the sweep last completed; the zero time means it
// has not run yet.
func (s *BundleService) LastSweep(ctx context.Context) (time.Time, error) {
	raw, err := s.store.GetSingleton(ctx, lastSweepSingleton)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	var t time.Time
	if err := json.Unmarshal(raw, &t); err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// reapOrphans collects archive files abandoned mid-run (file exists, no
// metadata entry) once they are older than the retention window.
func (s *BundleService) reapOrphans(ctx context.Context, now time.Time, referenced map[string]struct{}) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error(ctx, "sweep: cannot read bundle dir", "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := referenced[entry.Name()]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= s.retention {
			continue
		}
		if path, err := filex.SafeJoin(s.dir, entry.Name()); err == nil {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				s.logger.Error(ctx, "sweep: cannot remove orphan", "filename", entry.Name(), "error", err)
				continue
			}
			s.logger.Info(ctx, "sweep: removed orphan archive", "filename", entry.Name())
		}
	}
}
