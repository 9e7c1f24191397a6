package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/yegors/sectional/pkg/logger"
)

// DashboardHandler serves the bundled map dashboard (www/). The dashboard is
// a single page: unknown extension-less paths fall back to index.html so a
// reload on any client-side route still loads the app.
type DashboardHandler struct {
	root   string
	logger *logger.Logger
}

// NewDashboardHandler creates a handler serving dashboard assets from root.
func NewDashboardHandler(root string, logger *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		root:   root,
		logger: logger.Named("dashboard"),
	}
}

// ServeHTTP serves one dashboard asset.
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if rel == "" {
		rel = "index.html"
	}

	// Dotfiles and dot-directories are never served.
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			http.NotFound(w, r)
			return
		}
	}

	full := filepath.Join(h.root, filepath.FromSlash(rel))

	info, err := os.Stat(full)
	switch {
	case err == nil && info.IsDir():
		full = filepath.Join(full, "index.html")
		if _, err := os.Stat(full); err != nil {
			http.NotFound(w, r)
			return
		}
	case os.IsNotExist(err) && path.Ext(rel) == "":
		// Client-side route; hand back the app shell.
		full = filepath.Join(h.root, "index.html")
		if _, err := os.Stat(full); err != nil {
			http.NotFound(w, r)
			return
		}
	case err != nil:
		h.logger.Debug("Dashboard asset not found", logger.String("path", rel))
		http.NotFound(w, r)
		return
	}

	// Ratings change every cycle; the shell must not be cached across deploys.
	if strings.HasSuffix(full, ".html") {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	}

	http.ServeFile(w, r, full)
}
