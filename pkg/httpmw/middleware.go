// Package httpmw instruments net/http handlers with a per-request collector.
//
// Every request gets its own collector.Collector. The collector is stored in
// the request context so handlers can name the operation and open custom
// timers:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    c := collector.FromContext(r.Context())
//	    h := c.StartCustomTimer("db", "select orders")
//	    ...
//	    c.StopCustomTimer(h)
//	}
//
// When the handler returns (or panics) the middleware runs the collector's
// Shutdown, so panics and 5xx responses discard the session's data.
package httpmw

import (
	"net/http"
	"runtime/debug"

	"github.com/felixge/httpsnoop"
	"github.com/rs/zerolog"

	"github.com/coral-mesh/coral-collect/pkg/collector"
	"github.com/coral-mesh/coral-collect/pkg/hostenv"
)

// leaser is implemented by profilers that hand out per-session leases,
// such as profiler.CPUToggle.
type leaser interface {
	Lease() collector.Profiler
}

// Middleware creates collectors for incoming requests.
type Middleware struct {
	backend  collector.Backend
	decision collector.StartDecision
	profiler collector.Profiler
	logger   zerolog.Logger
	log      zerolog.Logger
	extra    []collector.Option
}

// Option configures a Middleware.
type Option func(*Middleware)

// WithProfiler sets the profiler enabled for sampled requests.
func WithProfiler(p collector.Profiler) Option {
	return func(m *Middleware) { m.profiler = p }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Middleware) { m.logger = logger }
}

// WithCollectorOptions appends options applied to every collector.
func WithCollectorOptions(opts ...collector.Option) Option {
	return func(m *Middleware) { m.extra = append(m.extra, opts...) }
}

// New creates a Middleware.
func New(backend collector.Backend, decision collector.StartDecision, opts ...Option) *Middleware {
	m := &Middleware{
		backend:  backend,
		decision: decision,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.logger.With().Str("component", "http-middleware").Logger()
	return m
}

// Handler wraps next.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invocation := hostenv.NewRequest(r)
		c := m.newCollector(invocation)
		c.Start()

		wroteHeader := false
		hooks := httpsnoop.Hooks{
			WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
				return func(code int) {
					if !wroteHeader {
						wroteHeader = true
						invocation.SetStatus(code)
					}
					next(code)
				}
			},
			Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
				return func(b []byte) (int, error) {
					if !wroteHeader {
						wroteHeader = true
						invocation.SetStatus(http.StatusOK)
					}
					return next(b)
				}
			},
		}

		defer func() {
			if p := recover(); p != nil {
				if p != http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity, as net/http does
					invocation.RecordPanic(p, debug.Stack())
				}
				m.log.Debug().
					Str("method", r.Method).
					Str("uri", invocation.RequestURI()).
					Interface("panic", p).
					Msg("Handler panicked")
				c.Shutdown()
				panic(p)
			}
			if !wroteHeader {
				invocation.SetStatus(http.StatusOK)
			}
			c.Shutdown()
		}()

		next.ServeHTTP(httpsnoop.Wrap(w, hooks), r.WithContext(collector.NewContext(r.Context(), c)))
	})
}

func (m *Middleware) newCollector(invocation *hostenv.Request) *collector.Collector {
	opts := []collector.Option{
		collector.WithInvocationContext(invocation),
		collector.WithLogger(m.logger),
	}
	if m.profiler != nil {
		p := m.profiler
		if l, ok := p.(leaser); ok {
			p = l.Lease()
		}
		opts = append(opts, collector.WithProfiler(p))
	}
	opts = append(opts, m.extra...)
	return collector.New(m.backend, m.decision, opts...)
}
