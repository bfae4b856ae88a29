package httpmsg

import "errors"

// Parser errors. Each corresponds to one terminal Bad outcome; a connection
// carrying one of these is closed without a response (see the handler
// package's error-taxonomy handling).
var (
	ErrInvalidStartLine  = errors.New("httpmsg: invalid start line")
	ErrInvalidProtocol   = errors.New("httpmsg: invalid or unsupported protocol version")
	ErrInvalidHeader     = errors.New("httpmsg: malformed header line")
	ErrInvalidContentLen = errors.New("httpmsg: invalid Content-Length")
	ErrChunkedEncoding   = errors.New("httpmsg: malformed chunked body")
)
