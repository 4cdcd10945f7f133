package tmx

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ReadFunc fetches the document or asset at a slash-separated path.
// A missing document must be reported with an error matching fs.ErrNotExist.
// Timeouts and retries are the responsibility of the implementation.
type ReadFunc func(ctx context.Context, name string) ([]byte, error)

// FSReader reads documents from fsys. Leading slashes are ignored.
func FSReader(fsys fs.FS) ReadFunc {
	return func(_ context.Context, name string) ([]byte, error) {
		return fs.ReadFile(fsys, strings.TrimPrefix(name, "/"))
	}
}

// OSReader reads documents from the local filesystem.
func OSReader() ReadFunc {
	return func(_ context.Context, name string) ([]byte, error) {
		return os.ReadFile(filepath.FromSlash(name))
	}
}

// resolvePath resolves ref relative to the directory of the document at base.
func resolvePath(base, ref string) string {
	if path.IsAbs(ref) {
		return path.Clean(ref)
	}
	return path.Join(path.Dir(base), ref)
}
