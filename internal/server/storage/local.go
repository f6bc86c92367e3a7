package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dpavlovs/filegate/internal/common"
	"github.com/dpavlovs/filegate/internal/filex"
	"github.com/dpavlovs/filegate/internal/server/models"
	"github.com/dpavlovs/filegate/internal/shared"
)

// LocalBackend stores files in a dedicated uploads directory on disk.
type LocalBackend struct {
	dir string
}

// NewLocalBackend ensures the uploads directory exists and returns a backend
// rooted there.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("uploads dir: %w", err)
	}
	return &LocalBackend{dir: abs}, nil
}

// Dir returns the uploads directory the backend is rooted at.
func (b *LocalBackend) Dir() string { return b.dir }

func (b *LocalBackend) Put(ctx context.Context, r io.Reader, suggestedName string) (models.Locator, int64, error) {
	name := filex.SanitizeName(suggestedName)

	path, err := filex.SafeJoin(b.dir, name)
	if err != nil {
		return nil, 0, err
	}

	// collision-safe: prefix with a random segment if the name is taken
	if _, err := os.Stat(path); err == nil {
		seg, err := shared.MakeRandHexString(4)
		if err != nil {
			return nil, 0, err
		}
		path, err = filex.SafeJoin(b.dir, seg+"-"+name)
		if err != nil {
			return nil, 0, err
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return nil, 0, fmt.Errorf("write %s: %w", path, err)
	}

	return models.LocalPath(path), n, nil
}

func (b *LocalBackend) resolve(loc models.Locator) (string, error) {
	lp, ok := loc.(models.LocalPath)
	if !ok {
		return "", fmt.Errorf("local backend given non-local locator: %w", common.ErrNotSupported)
	}
	// records carry absolute paths under dir; re-check containment anyway
	rel, err := filepath.Rel(b.dir, string(lp))
	if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return "", fmt.Errorf("path %q outside uploads dir", lp)
	}
	return string(lp), nil
}

func (b *LocalBackend) Get(ctx context.Context, loc models.Locator) ([]byte, error) {
	path, err := b.resolve(loc)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (b *LocalBackend) Replace(ctx context.Context, loc models.Locator, r io.Reader) (int64, error) {
	path, err := b.resolve(loc)
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return n, nil
}

func (b *LocalBackend) Head(ctx context.Context, loc models.Locator) (ObjectInfo, error) {
	path, err := b.resolve(loc)
	if err != nil {
		return ObjectInfo{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ObjectInfo{}, common.ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return ObjectInfo{Size: info.Size(), ModifiedAt: info.ModTime().UTC()}, nil
}

func (b *LocalBackend) Delete(ctx context.Context, loc models.Locator) error {
	path, err := b.resolve(loc)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return common.ErrNotFound
		}
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// PresignedURL is not applicable to local files; the dispatcher streams them
// directly instead.
func (b *LocalBackend) PresignedURL(ctx context.Context, loc models.Locator, displayName string, ttl time.Duration) (string, error) {
	return "", common.ErrNotSupported
}

// Open returns a streaming handle for a local file, for the dispatcher's
// direct-stream path.
func (b *LocalBackend) Open(ctx context.Context, loc models.Locator) (io.ReadCloser, ObjectInfo, error) {
	path, err := b.resolve(loc)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, common.ErrNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return f, ObjectInfo{Size: info.Size(), ModifiedAt: info.ModTime().UTC()}, nil
}
