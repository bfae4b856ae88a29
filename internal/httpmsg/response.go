package httpmsg

import (
	"bytes"
	"strconv"
)

// ParseResponse attempts to parse one complete HTTP/1.1 response from the
// front of view, mirroring ParseRequest's start-line/headers/body loop and
// re-entry contract. This implementation is provided for completeness and
// for any caller that wants to frame upstream traffic; the proxy's
// connection handler does not call it (see DESIGN.md) and bridges
// upstream bytes opaquely instead.
func ParseResponse(view []byte, resp *Response) Outcome {
	version, status, reason, afterLine, ok := parseStatusLine(view)
	if !ok {
		return Outcome{Status: OutcomeNeedMore}
	}
	if version == "" {
		return bad(ErrInvalidStartLine)
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

	resp.Version = version
	resp.StatusCode = status
	resp.ReasonPhrase = reason
	resp.Headers = headers
	resp.Body = body
	resp.ContentLength = contentLengthOf(headers)
	resp.Chunked = isChunked(headers)
	resp.State = StateDone

	return Outcome{Status: OutcomeComplete, Consumed: consumed}
}

// parseStatusLine extracts "VERSION SP STATUS SP [REASON]" from the head
// of view.
func parseStatusLine(view []byte) (version string, status int, reason string, rest int, ok bool) {
	idx := bytes.Index(view, crlf)
	if idx < 0 {
		return "", 0, "", 0, false
	}
	line := view[:idx]
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 < 0 {
		return "", 0, "", idx + 2, true
	}
	remainder := line[sp1+1:]
	sp2 := bytes.IndexByte(remainder, ' ')
	var statusField, reasonField []byte
	if sp2 < 0 {
		statusField = remainder
	} else {
		statusField = remainder[:sp2]
		reasonField = remainder[sp2+1:]
	}
	code, err := strconv.Atoi(string(statusField))
	if err != nil {
		return "", 0, "", idx + 2, true
	}
	return string(line[:sp1]), code, string(reasonField), idx + 2, true
}
