package site

import "path/filepath"

// BlobName derives the blob name for a file at relPath under the build
// output directory. Path separators are normalized to forward slashes
// regardless of the local separator convention.
func BlobName(relPath string) string {
	return filepath.ToSlash(relPath)
}
