package httpmsg

// Header is a mapping from lowercased header name to a single trimmed
// value. Duplicate names overwrite; there are no list-valued headers.
type Header map[string]string

// Get returns the value for a lowercased header name, or "" if absent.
func (h Header) Get(name string) string {
	return h[name]
}

// Request is a fully or partially parsed HTTP/1.1 request.
type Request struct {
	Method  string
	Path    string
	Version string
	Headers Header
	Body    []byte

	State         State
	ContentLength int
	Chunked       bool
	KeepAlive     bool

	err error
}

// Err returns the terminal parse error, if State == StateError.
func (r *Request) Err() error { return r.err }

// NewRequest returns a fresh, reusable Request in StateStartLine.
func NewRequest() *Request {
	r := &Request{}
	r.Reset()
	return r
}

// Reset returns the request to its initial state for reuse by a pooled
// parser, equivalent to a freshly constructed Request.
func (r *Request) Reset() {
	r.Method = ""
	r.Path = ""
	r.Version = ""
	r.Headers = make(Header, 8)
	r.Body = nil
	r.State = StateStartLine
	r.ContentLength = 0
	r.Chunked = false
	r.KeepAlive = false
	r.err = nil
}

// Response is a fully or partially parsed HTTP/1.1 response, filled in by
// ParseResponse. The proxy handler does not parse upstream responses; it
// bridges them opaquely (see DESIGN.md).
type Response struct {
	Version      string
	StatusCode   int
	ReasonPhrase string
	Headers      Header
	Body         []byte

	State         State
	ContentLength int
	Chunked       bool

	err error
}

func (r *Response) Err() error { return r.err }

// NewResponse returns a fresh, reusable Response in StateStartLine.
func NewResponse() *Response {
	r := &Response{}
	r.Reset()
	return r
}

// Reset returns the response to its initial state for reuse.
func (r *Response) Reset() {
	r.Version = ""
	r.StatusCode = 0
	r.ReasonPhrase = ""
	r.Headers = make(Header, 8)
	r.Body = nil
	r.State = StateStartLine
	r.ContentLength = 0
	r.Chunked = false
	r.err = nil
}

// Outcome is the result of one Parse call.
type Outcome struct {
	// Consumed is the number of bytes of the input view that made up the
	// completed message; only meaningful when Status == OutcomeComplete.
	Consumed int
	Status   OutcomeStatus
	Err      error
}

type OutcomeStatus uint8

const (
	// OutcomeNeedMore means the view did not contain a complete message;
	// the caller should wait for more bytes and re-invoke ParseRequest (or
	// ParseResponse) with a longer view starting at the same offset.
	OutcomeNeedMore OutcomeStatus = iota
	// OutcomeComplete means a full message was parsed; Consumed bytes
	// should be dropped from the caller's buffer.
	OutcomeComplete
	// OutcomeBad means the view contains malformed input; the connection
	// must be closed, Err explains why.
	OutcomeBad
)
