package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Executable/script extensions are rejected; everything else is allowed.
var blockedExt = map[string]bool{
	".exe": true, ".sh": true, ".js": true, ".bat": true, ".cmd": true,
	".php": true, ".py": true, ".rb": true,
}

// LocalStore writes avatars to a directory on disk and serves them under
// /api/avatars/{name}.
type LocalStore struct {
	Dir     string
	MaxSize int64
}

func NewLocalStore(dir string, maxSize int64) *LocalStore {
	return &LocalStore{Dir: dir, MaxSize: maxSize}
}

func (s *LocalStore) Upload(ctx context.Context, filename string, content io.Reader, size int64) (string, error) {
	if s.MaxSize > 0 && size > s.MaxSize {
		return "", fmt.Errorf("blob: file too large (%d bytes)", size)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if blockedExt[ext] {
		return "", fmt.Errorf("blob: file type %q not allowed", ext)
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("blob: create upload dir: %w", err)
	}

	name := uuid.New().String() + ext
	path := filepath.Join(s.Dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("blob: create file: %w", err)
	}

	if err := copyWithContext(ctx, dst, content); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("blob: write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("blob: close file: %w", err)
	}
	return "/api/avatars/" + name, nil
}

// ServePath resolves a served name back to the on-disk path, stripping any
// directory components.
func (s *LocalStore) ServePath(name string) string {
	return filepath.Join(s.Dir, filepath.Base(name))
}

// copyWithContext copies in chunks, aborting once ctx is cancelled.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
