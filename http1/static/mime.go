package static

import (
	"path/filepath"
	"strings"
)

var defaultMimeTypes = map[string]string{
	"7z":   "application/x-7z-compressed",
	"atom": "application/atom+xml",
	"bin":  "application/octet-stream",
	"bmp":  "image/x-ms-bmp",
	"css":  "text/css",
	"gif":  "image/gif",
	"htm":  "text/html",
	"html": "text/html",
	"ico":  "image/x-icon",
	"jar":  "application/java-archive",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"js":   "application/javascript",
	"json": "application/json",
	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
	"pdf":  "application/pdf",
	"png":  "image/png",
	"rss":  "application/rss+xml",
	"svg":  "image/svg+xml",
	"txt":  "text/plain",
	"wasm": "application/wasm",
	"webm": "video/webm",
	"webp": "image/webp",
	"xml":  "text/xml",
	"zip":  "application/zip",
}

// binaryExts are served without any text handling.
var binaryExts = map[string]bool{
	"gif":  true,
	"jpg":  true,
	"jpeg": true,
	"png":  true,
}

// extension returns the lowercased extension of name without the dot.
func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// IsBinary reports whether files like name are image data.
func IsBinary(name string) bool {
	return binaryExts[extension(name)]
}

// MimeType looks up the extension of name in the resolver's table. Unknown
// extensions become "text/<ext>"; a name without extension is text/plain.
func (r *Resolver) MimeType(name string) string {
	ext := extension(name)
	if ext == "" {
		return "text/plain"
	}
	if t, ok := r.mimeTypes[ext]; ok {
		return t
	}
	return "text/" + ext
}
