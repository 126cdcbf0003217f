package collector

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Collector is the profiling session controller for one unit of work.
type Collector struct {
	backend  Backend
	decision StartDecision
	profiler Profiler
	invoke   InvocationContext
	exit     ExitRegistrar
	hooks    *HookGuard
	logger   zerolog.Logger
	now      func() time.Time

	active        bool
	startedAt     time.Time
	sampled       bool
	operationType OperationType
	operationName string
	timers        []CustomTimer
	fatal         *FatalError
}

// Option configures a Collector.
type Option func(*Collector)

// WithProfiler sets the profiler toggled for sampled sessions.
func WithProfiler(p Profiler) Option {
	return func(c *Collector) { c.profiler = p }
}

// WithInvocationContext sets the hosting environment inspector.
func WithInvocationContext(ic InvocationContext) Option {
	return func(c *Collector) {
		if ic != nil {
			c.invoke = ic
		}
	}
}

// WithExitRegistrar sets where Shutdown is registered on the first Start.
func WithExitRegistrar(r ExitRegistrar) Option {
	return func(c *Collector) { c.exit = r }
}

// WithHookGuard replaces ProcessHookGuard.
func WithHookGuard(g *HookGuard) Option {
	return func(c *Collector) {
		if g != nil {
			c.hooks = g
		}
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger.With().Str("component", "collector").Logger()
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Collector that forwards finished sessions to backend.
// A nil decision never profiles; a nil backend discards everything.
func New(backend Backend, decision StartDecision, opts ...Option) *Collector {
	if backend == nil {
		backend = discardBackend{}
	}
	if decision == nil {
		decision = Never
	}

	c := &Collector{
		backend:       backend,
		decision:      decision,
		invoke:        emptyContext{},
		hooks:         ProcessHookGuard,
		logger:        zerolog.Nop(),
		now:           time.Now,
		operationType: OperationWeb,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a session. It is a no-op while a session is active.
func (c *Collector) Start() {
	if c.active {
		return
	}

	c.operationName = ""
	c.timers = nil
	c.fatal = nil
	c.startedAt = c.now()
	c.operationType = OperationWeb
	if c.invoke.IsWorker() {
		c.operationType = OperationWorker
	}
	c.sampled = false
	c.guard("decide", func() { c.sampled = c.decision.ShouldProfile() })
	c.active = true

	if c.exit != nil && c.hooks.TryInstall() {
		c.guard("register exit hook", func() { c.exit.Register(c.Shutdown) })
	}

	c.logger.Debug().
		Bool("sampled", c.sampled).
		Stringer("operation_type", c.operationType).
		Msg("Session started")

	if !c.sampled || c.profiler == nil {
		return
	}
	c.guard("enable profiler", c.profiler.Enable)
}

// SetOperationType overrides the inferred operation type.
func (c *Collector) SetOperationType(t OperationType) {
	c.operationType = t
}

// SetOperationName overrides the name guessed at Stop.
func (c *Collector) SetOperationName(name string) {
	c.operationName = name
}

// StartCustomTimer opens a timer inside a sampled session and returns its
// handle. It returns NoTimer when no sampled session is active.
func (c *Collector) StartCustomTimer(group, label string) TimerHandle {
	if !c.active || !c.sampled {
		return NoTimer
	}
	c.timers = append(c.timers, CustomTimer{
		Group:     group,
		Label:     label,
		startedAt: c.now(),
	})
	return TimerHandle(len(c.timers) - 1)
}

// StopCustomTimer closes the timer identified by h. Unknown and already
// closed handles are ignored.
func (c *Collector) StopCustomTimer(h TimerHandle) {
	t := c.lookupOpenTimer(h)
	if t == nil {
		return
	}
	t.DurationMicros = roundMicros(c.now().Sub(t.startedAt))
	t.Closed = true
	t.startedAt = time.Time{}
}

// LogFatal records the session's fatal error. Only the first call of a
// session is kept.
func (c *Collector) LogFatal(message, file string, line int, kind ErrorKind) {
	if c.fatal != nil {
		return
	}
	c.fatal = &FatalError{
		Message: message,
		File:    file,
		Line:    line,
		Kind:    kind,
	}
	c.logger.Debug().
		Str("message", message).
		Str("file", file).
		Int("line", line).
		Stringer("kind", kind).
		Msg("Fatal error recorded")
}

// LogUserFatal is LogFatal with KindUser.
func (c *Collector) LogUserFatal(message, file string, line int) {
	c.LogFatal(message, file, line, KindUser)
}

// Shutdown is the exit hook. It captures a fatal runtime error or a server
// error status from the invocation context and then stops the session.
// It is a no-op when no session is active.
func (c *Collector) Shutdown() {
	if !c.active {
		return
	}

	var (
		lastErr *FatalError
		status  int
	)
	c.guard("inspect last error", func() { lastErr = c.invoke.LastError() })
	c.guard("inspect status", func() { status = c.invoke.StatusCode() })

	switch {
	case lastErr != nil && lastErr.Kind.IsFatal():
		c.LogFatal(lastErr.Message, lastErr.File, lastErr.Line, lastErr.Kind)
	case status >= 500:
		c.LogFatal(fmt.Sprintf("HTTP status %d", status), "", 0, KindServer)
	}

	c.Stop("")
}

// Stop ends the session and forwards its data to the backend. A non-empty
// operationName overrides any previously set name. It is a no-op when no
// session is active.
func (c *Collector) Stop(operationName string) {
	if !c.active {
		return
	}

	var data Dataset
	if c.sampled && c.profiler != nil {
		c.guard("disable profiler", func() { data = c.profiler.Disable() })
	}

	duration := c.now().Sub(c.startedAt)
	c.active = false
	c.startedAt = time.Time{}

	if operationName != "" {
		c.operationName = operationName
	}
	if c.operationName == "" {
		c.guard("guess operation name", func() { c.operationName = c.guessOperationName() })
	}

	logEvent := c.logger.Debug().
		Str("operation", c.operationName).
		Dur("duration", duration).
		Bool("sampled", c.sampled)

	switch {
	case c.fatal != nil:
		logEvent.Str("fatal", c.fatal.Error()).Msg("Session discarded after fatal error")
	case c.sampled:
		timers := make([]CustomTimer, len(c.timers))
		copy(timers, c.timers)
		logEvent.Int("timers", len(timers)).Int("dataset_bytes", len(data)).Msg("Storing profile")
		c.guard("store profile", func() { c.backend.StoreProfile(c.operationName, data, timers) })
	default:
		millis := roundMillis(duration)
		logEvent.Int64("duration_ms", millis).Msg("Storing measurement")
		c.guard("store measurement", func() {
			c.backend.StoreMeasurement(c.operationName, millis, c.operationType)
		})
	}
}

// IsStarted reports whether a session is active.
func (c *Collector) IsStarted() bool {
	return c.active
}

// IsSampled reports whether the current or last session was profiled.
func (c *Collector) IsSampled() bool {
	return c.sampled
}

// OperationType returns the current operation type.
func (c *Collector) OperationType() OperationType {
	return c.operationType
}

// OperationName returns the explicit or resolved operation name.
func (c *Collector) OperationName() string {
	return c.operationName
}

// Fatal returns a copy of the session's fatal record, or nil.
func (c *Collector) Fatal() *FatalError {
	if c.fatal == nil {
		return nil
	}
	f := *c.fatal
	return &f
}

// Timers returns a copy of the session's custom timers in creation order.
func (c *Collector) Timers() []CustomTimer {
	out := make([]CustomTimer, len(c.timers))
	copy(out, c.timers)
	return out
}

func (c *Collector) guessOperationName() string {
	if c.invoke.IsWorker() {
		program := c.invoke.ProgramName()
		if program == "" {
			return ""
		}
		return filepath.Base(program)
	}

	path, _, _ := strings.Cut(c.invoke.RequestURI(), "?")
	return c.invoke.RequestMethod() + " " + path
}

// guard runs a collaborator call and logs instead of propagating a panic.
func (c *Collector) guard(op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("op", op).
				Interface("panic", r).
				Msg("Recovered panic in profiling collaborator")
		}
	}()
	fn()
}
