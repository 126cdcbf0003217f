package hostenv

import (
	"net/http"
	"sync"

	"github.com/coral-mesh/coral-collect/pkg/collector"
)

// Request is the invocation context of one served HTTP request.
type Request struct {
	method string
	uri    string

	mu      sync.Mutex
	status  int
	lastErr *collector.FatalError
}

var _ collector.InvocationContext = (*Request)(nil)

// NewRequest creates a web context for r.
func NewRequest(r *http.Request) *Request {
	uri := r.RequestURI
	if uri == "" && r.URL != nil {
		uri = r.URL.RequestURI()
	}
	return &Request{
		method: r.Method,
		uri:    uri,
	}
}

// IsWorker always returns false.
func (r *Request) IsWorker() bool { return false }

// RequestMethod returns the HTTP method.
func (r *Request) RequestMethod() string { return r.method }

// RequestURI returns the path and query string.
func (r *Request) RequestURI() string { return r.uri }

// ProgramName is always empty for requests.
func (r *Request) ProgramName() string { return "" }

// SetStatus records the response status code.
func (r *Request) SetStatus(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = code
}

// StatusCode returns the recorded response status, or 0.
func (r *Request) StatusCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// LastError returns the recorded panic, if any.
func (r *Request) LastError() *collector.FatalError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// RecordPanic records a panic raised by the handler.
func (r *Request) RecordPanic(v any, stack []byte) {
	fatal := panicError(v, stack)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastErr = fatal
}
