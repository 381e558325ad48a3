// Package defaults holds the well-known names and paths used across the
// deployment pipeline.
package defaults

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// OutputDir is the build output subdirectory uploads are read from.
	OutputDir = "dist"

	// Container is the well-known upload target container for static
	// website content.
	Container = "$web"

	// IndexDocument is the static-website index document name.
	IndexDocument = "index.html"

	// ErrorDocument is the static-website 404 fallback document. Single
	// page apps route unknown paths through the index document.
	ErrorDocument = "index.html"
)

// DataRoot returns the local state directory. It respects XDG_DATA_HOME,
// falling back to ~/.local/share/siteup.
func DataRoot() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".local", "share", "siteup")
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "siteup")
}

// HistoryDBPath returns the path of the deployment history database.
func HistoryDBPath() string {
	return filepath.Join(DataRoot(), "history.db")
}

// EnsureDataRoot creates dir with owner-only permissions.
func EnsureDataRoot(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return nil
}
