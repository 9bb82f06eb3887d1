package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrymomot/dispatchkit/handler"
)

// StaticFiles serves files below dir for Mount. With html set, a directory
// request serves its index.html. Paths escaping dir are rejected with 403.
func StaticFiles(dir string, html bool) MountFunc {
	root, err := filepath.Abs(dir)
	if err != nil {
		root = filepath.Clean(dir)
	}
	return func(_ context.Context, filePath string) (any, error) {
		if strings.Contains(filePath, "..") {
			return nil, handler.ErrForbidden
		}
		full := filepath.Join(root, filepath.FromSlash(strings.TrimLeft(filePath, "/")))
		if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
			return nil, handler.ErrForbidden
		}

		info, err := os.Stat(full)
		if err == nil && info.IsDir() && html {
			full = filepath.Join(full, "index.html")
			info, err = os.Stat(full)
		}
		if err != nil || info.IsDir() {
			return nil, handler.NewHTTPError(http.StatusNotFound, "File not found")
		}
		return handler.File(full, ""), nil
	}
}
