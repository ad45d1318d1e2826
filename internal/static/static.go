// Package static serves the site's pages and assets from disk.
package static

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound means there is no regular file at the requested path.
var ErrNotFound = errors.New("static: not found")

// sniffLen is how much of the body http.DetectContentType looks at.
const sniffLen = 512

// File is a fully read static file.
type File struct {
	Path        string
	ContentType string
	Body        []byte
}

// Server opens static files by filesystem path. The dispatcher depends on
// this interface so tests can serve from memory.
type Server interface {
	Open(path string) (*File, error)
}

// Dir serves files from the local filesystem. Paths passed to Open are
// expected to be already resolved under the content root by the route
// classifier.
type Dir struct{}

var _ Server = Dir{}

// Open reads the file at path. Anything that cannot be resolved to a regular
// file is ErrNotFound: missing entries, directories, a file used as a
// directory (ENOTDIR), over-long names and unreadable entries. Only a failure
// to read an existing regular file is returned wrapped.
func (Dir) Open(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("static: stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotFound
	}

	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("static: reading %s: %w", path, err)
	}

	return &File{
		Path:        path,
		ContentType: ContentType(path, body),
		Body:        body,
	}, nil
}

// ContentType picks a MIME type from the file extension and falls back to
// sniffing the first bytes of body.
func ContentType(path string, body []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	if len(body) > sniffLen {
		body = body[:sniffLen]
	}
	return http.DetectContentType(body)
}
