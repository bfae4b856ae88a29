package router

import (
	"bytes"
	"regexp"
)

// urlencodedPattern matches the light well-formedness check the spec
// defines for application/x-www-form-urlencoded upload bodies: one or
// more "key=value" pairs, keys restricted to word characters, separated
// by '&'.
var urlencodedPattern = regexp.MustCompile(`^([A-Za-z0-9_]+=[^&]*&?)+$`)

// isWellFormedJSON applies the spec's light check: after trimming
// surrounding whitespace, the body must start with '{' and end with '}'.
// This is deliberately not a real JSON parse — the original source never parses the upload body, it only sanity-checks
// its shape before echoing it back.
func isWellFormedJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}
	return trimmed[0] == '{' && trimmed[len(trimmed)-1] == '}'
}

func isWellFormedURLEncoded(body []byte) bool {
	return urlencodedPattern.Match(body)
}

// minifyJSON strips newlines, carriage returns, and tabs from a JSON
// response body, matching ConnectionManager::minify_json's byte-level
// pass rather than re-serialising through a JSON encoder.
func minifyJSON(body []byte) []byte {
	out := make([]byte, 0, len(body))
	for _, b := range body {
		switch b {
		case '\n', '\r', '\t':
			continue
		default:
			out = append(out, b)
		}
	}
	return out
}
