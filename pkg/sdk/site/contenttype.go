package site

import "strings"

// DefaultContentType is used for extensions outside the fixed table.
const DefaultContentType = "application/octet-stream"

// contentTypes is a fixed table of common web and media extensions. The
// lookup is deliberately not backed by the platform MIME registry so the
// mapping is identical on every host.
var contentTypes = map[string]string{
	".html":  "text/html",
	".htm":   "text/html",
	".css":   "text/css",
	".js":    "application/javascript",
	".mjs":   "application/javascript",
	".json":  "application/json",
	".xml":   "application/xml",
	".txt":   "text/plain",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".pdf":   "application/pdf",
	".wasm":  "application/wasm",
	".map":   "application/json",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
}

// ContentType maps a file extension (with leading dot, case-insensitive)
// to its MIME type. Unknown extensions map to DefaultContentType.
func ContentType(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return DefaultContentType
}
