package optimize

import (
	"mime"
	"path/filepath"
	"strings"
)

// ContentType returns the media type served for an artifact name. A trailing
// compression suffix is ignored.
func ContentType(name string) string {
	name = strings.TrimSuffix(name, CompressedSuffix)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".js", ".mjs", ".cjs":
		return "application/javascript; charset=utf-8"
	case ".map", ".json":
		return "application/json; charset=utf-8"
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
