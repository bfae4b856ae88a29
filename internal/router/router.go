// Package router implements the origin server's static-file and tiny
// upload API, mapping one parsed request to one framed HTTP/1.1 response.
package router

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yourusername/ember/internal/httpmsg"
)

const (
	fallback501 = "<html><body><h1>501 Not Implemented</h1></body></html>"
	fallback404 = "<html><body><h1>404 Not Found</h1></body></html>"
)

// Router is a pure function of (static root, data root, request) to
// (status, content type, body). It never follows symlinks or escapes its
// roots: any path containing a ".." segment is rejected before the
// filesystem is ever touched (mandatory per the spec; the original source
// does not enforce this), and a static file reached through a symbolic
// link is answered with 404.
type Router struct {
	StaticDir string
	DataDir   string
}

// New returns a Router rooted at staticDir and dataDir.
func New(staticDir, dataDir string) *Router {
	return &Router{StaticDir: staticDir, DataDir: dataDir}
}

// Handle maps req to a fully framed HTTP/1.1 response, ready to append to
// a connection's output buffer. Every response this router produces
// carries Connection: close (§4.7); the handler must not honour any
// parsed keep-alive hint after serving through this router.
func (rt *Router) Handle(req *httpmsg.Request) []byte {
	status, reason, contentType, body := rt.route(req)
	return frame(status, reason, contentType, body)
}

func (rt *Router) route(req *httpmsg.Request) (status int, reason, contentType string, body []byte) {
	if req.Method != "GET" && req.Method != "POST" {
		return rt.notImplemented()
	}

	if req.Method == "POST" && req.Path == "/api/upload" {
		return rt.handleUpload(req)
	}

	if req.Method == "POST" {
		return rt.notImplemented()
	}

	return rt.handleGet(req.Path)
}

func (rt *Router) notImplemented() (int, string, string, []byte) {
	body, err := os.ReadFile(filepath.Join(rt.StaticDir, "501.html"))
	if err != nil {
		body = []byte(fallback501)
	}
	return 501, "Not Implemented", "text/html", body
}

func (rt *Router) handleUpload(req *httpmsg.Request) (int, string, string, []byte) {
	ct := req.Headers.Get("content-type")
	var ok bool
	switch {
	case strings.HasPrefix(ct, "application/json"):
		ok = isWellFormedJSON(req.Body)
	case strings.HasPrefix(ct, "application/x-www-form-urlencoded"):
		ok = isWellFormedURLEncoded(req.Body)
	default:
		ok = false
	}
	if !ok {
		return rt.uploadError()
	}
	return 200, "OK", "application/json", req.Body
}

func (rt *Router) uploadError() (int, string, string, []byte) {
	body, err := os.ReadFile(filepath.Join(rt.DataDir, "error.json"))
	if err != nil {
		body = []byte(`{"error":"invalid request body"}`)
	}
	return 404, "Not Found", "application/json", body
}

func (rt *Router) handleGet(reqPath string) (int, string, string, []byte) {
	if reqPath == "/" {
		reqPath = "/index.html"
	}
	if !safeRelative(reqPath) {
		return rt.fileNotFound()
	}

	full := filepath.Join(rt.StaticDir, filepath.FromSlash(reqPath))
	root, err := filepath.EvalSymlinks(rt.StaticDir)
	if err != nil {
		return rt.fileNotFound()
	}
	if resolved, err := filepath.EvalSymlinks(full); err != nil || resolved != filepath.Join(root, filepath.FromSlash(reqPath)) {
		// Missing, or reached through a symbolic link below StaticDir.
		return rt.fileNotFound()
	}
	body, err := os.ReadFile(full)
	if err != nil {
		return rt.fileNotFound()
	}

	contentType := contentTypeFor(reqPath)
	if contentType == "application/json" {
		body = minifyJSON(body)
	}
	return 200, "OK", contentType, body
}

func (rt *Router) fileNotFound() (int, string, string, []byte) {
	body, err := os.ReadFile(filepath.Join(rt.StaticDir, "404.html"))
	if err != nil {
		body = []byte(fallback404)
	}
	return 404, "Not Found", "text/html", body
}

// safeRelative rejects any path containing a ".." segment, which would
// otherwise allow escaping StaticDir.
func safeRelative(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}

func frame(status int, reason, contentType string, body []byte) []byte {
	head := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Type: %s\r\nContent-Length: %d\r\nConnection: close\r\n\r\n",
		status, reason, contentType, len(body))
	out := make([]byte, 0, len(head)+len(body))
	out = append(out, head...)
	out = append(out, body...)
	return out
}
