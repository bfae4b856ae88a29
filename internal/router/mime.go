package router

import "strings"

// contentTypeFor derives a response content type from a file's extension.
// Unknown extensions, and files with no extension, default to text/html —
// this is a small static table, not a general MIME database, by design
// (an explicit external collaborator per the spec).
func contentTypeFor(path string) string {
	switch ext(path) {
	case ".html":
		return "text/html"
	case ".css":
		return "text/css"
	case ".js":
		return "text/javascript"
	case ".json":
		return "application/json"
	default:
		return "text/html"
	}
}

func ext(path string) string {
	if idx := strings.LastIndexByte(path, '.'); idx >= 0 {
		return strings.ToLower(path[idx:])
	}
	return ""
}
