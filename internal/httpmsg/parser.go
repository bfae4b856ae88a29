package httpmsg

import (
	"bytes"
	"strconv"
	"strings"
)

// ParseRequest attempts to parse one complete HTTP/1.1 request from the
// front of view. It never mutates req until it knows the full message is
// present (or malformed): on NeedMore, req is left untouched and the
// caller should re-invoke ParseRequest with the same starting offset and a
// longer view once more bytes have arrived. This makes re-entry trivially
// idempotent and gives partition-independence for free: parsing a prefix
// twice produces the same outcome as parsing the whole thing once, because
// every call re-derives the message from scratch over whatever prefix of
// bytes is currently available.
func ParseRequest(view []byte, req *Request) (out Outcome) {
	defer func() {
		if out.Status == OutcomeBad {
			req.State = StateError
			req.err = out.Err
		}
	}()
	method, path, version, afterLine, ok := parseStartLine(view)
	if !ok {
		return Outcome{Status: OutcomeNeedMore}
	}
	if method == "" {
		return bad(ErrInvalidStartLine)
	}
	if version != "HTTP/1.0" && version != "HTTP/1.1" {
		return bad(ErrInvalidProtocol)
	}

	headers, afterHeaders, ok, err := parseHeaders(view, afterLine)
	if err != nil {
		return bad(err)
	}
	if !ok {
		return Outcome{Status: OutcomeNeedMore}
	}

	body, consumed, outcome := parseBody(view, afterHeaders, headers)
	if outcome.Status != OutcomeComplete {
		return outcome
	}

	req.Method = method
	req.Path = path
	req.Version = version
	req.Headers = headers
	req.Body = body
	req.ContentLength = contentLengthOf(headers)
	req.Chunked = isChunked(headers)
	req.KeepAlive = keepAliveOf(version, headers)
	req.State = StateDone

	return Outcome{Status: OutcomeComplete, Consumed: consumed}
}

// parseStartLine extracts "METHOD SP PATH SP VERSION CRLF" from the head
// of view. ok is false when the CRLF has not yet arrived (NeedMore); when
// ok is true but method == "", the line arrived but did not tokenise into
// exactly three fields (Bad).
func parseStartLine(view []byte) (method, path, version string, rest int, ok bool) {
	idx := bytes.Index(view, crlf)
	if idx < 0 {
		return "", "", "", 0, false
	}
	line := view[:idx]
	parts := splitSP(line)
	if len(parts) != 3 {
		return "", "", "", idx + 2, true
	}
	return string(parts[0]), string(parts[1]), string(parts[2]), idx + 2, true
}

// splitSP splits on single ASCII spaces without collapsing runs, since an
// empty field between two spaces should still fail the 3-field check
// rather than silently disappear.
func splitSP(line []byte) [][]byte {
	return bytes.Split(line, []byte{' '})
}

// parseHeaders parses header lines starting at offset start in view, up to
// and including the terminating blank CRLF. Returns the parsed headers and
// the offset immediately after the blank line. ok is false on NeedMore.
func parseHeaders(view []byte, start int) (Header, int, bool, error) {
	headers := make(Header, 8)
	cursor := start
	for {
		idx := bytes.Index(view[cursor:], crlf)
		if idx < 0 {
			return nil, 0, false, nil
		}
		line := view[cursor : cursor+idx]
		cursor += idx + 2
		if len(line) == 0 {
			return headers, cursor, true, nil
		}
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return nil, 0, false, ErrInvalidHeader
		}
		name := strings.ToLower(string(bytes.TrimSpace(line[:colon])))
		value := string(trimOWS(line[colon+1:]))
		headers[name] = value
	}
}

// trimOWS strips leading and trailing SP/HT, the "optional whitespace"
// RFC 7230 permits around a header value.
func trimOWS(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

func isChunked(h Header) bool {
	return strings.EqualFold(h.Get("transfer-encoding"), "chunked")
}

func contentLengthOf(h Header) int {
	n, err := strconv.Atoi(h.Get("content-length"))
	if err != nil {
		return 0
	}
	return n
}

// parseBody selects fixed-length or chunked body framing per the headers
// already parsed, per RFC 7230 §3.3.3: a chunked Transfer-Encoding takes
// precedence over a simultaneously present Content-Length.
func parseBody(view []byte, start int, headers Header) ([]byte, int, Outcome) {
	if isChunked(headers) {
		return parseChunkedBody(view, start)
	}
	if cl, has := headers["content-length"]; has {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 {
			return nil, 0, bad(ErrInvalidContentLen)
		}
		if len(view)-start < n {
			return nil, 0, Outcome{Status: OutcomeNeedMore}
		}
		body := make([]byte, n)
		copy(body, view[start:start+n])
		return body, start + n, Outcome{Status: OutcomeComplete}
	}
	return nil, start, Outcome{Status: OutcomeComplete}
}

// parseChunkedBody decodes RFC 7230 §4.1 chunked framing. Chunk extensions
// introduced by ';' are tolerated and discarded; trailers are not
// supported (any bytes after the zero-chunk's size line must be exactly
// the terminating CRLF).
func parseChunkedBody(view []byte, start int) ([]byte, int, Outcome) {
	cursor := start
	var body []byte
	for {
		idx := bytes.Index(view[cursor:], crlf)
		if idx < 0 {
			return nil, 0, Outcome{Status: OutcomeNeedMore}
		}
		sizeLine := view[cursor : cursor+idx]
		if semi := bytes.IndexByte(sizeLine, ';'); semi >= 0 {
			sizeLine = sizeLine[:semi]
		}
		sizeLine = bytes.TrimSpace(sizeLine)
		if len(sizeLine) > maxHexChunkDigits {
			return nil, 0, bad(ErrChunkedEncoding)
		}
		size, err := strconv.ParseUint(string(sizeLine), 16, 64)
		if err != nil {
			return nil, 0, bad(ErrChunkedEncoding)
		}
		cursor += idx + 2

		if size == 0 {
			if len(view)-cursor < 2 {
				return nil, 0, Outcome{Status: OutcomeNeedMore}
			}
			if !bytes.Equal(view[cursor:cursor+2], crlf) {
				return nil, 0, bad(ErrChunkedEncoding)
			}
			cursor += 2
			return body, cursor, Outcome{Status: OutcomeComplete}
		}

		need := int(size) + 2
		if len(view)-cursor < need {
			return nil, 0, Outcome{Status: OutcomeNeedMore}
		}
		if !bytes.Equal(view[cursor+int(size):cursor+need], crlf) {
			return nil, 0, bad(ErrChunkedEncoding)
		}
		body = append(body, view[cursor:cursor+int(size)]...)
		cursor += need
	}
}

func keepAliveOf(version string, h Header) bool {
	conn := strings.ToLower(h.Get("connection"))
	if version == "HTTP/1.1" {
		return conn != "close"
	}
	return conn == "keep-alive"
}

func bad(err error) Outcome {
	return Outcome{Status: OutcomeBad, Err: err}
}
