package collector

import "fmt"

// OperationType classifies the unit of work being measured.
type OperationType int

const (
	// OperationWeb is an interactively served request.
	OperationWeb OperationType = 1
	// OperationWorker is a batch or worker invocation.
	OperationWorker OperationType = 2
)

// String returns the lowercase name of the operation type.
func (t OperationType) String() string {
	switch t {
	case OperationWeb:
		return "web"
	case OperationWorker:
		return "worker"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Dataset is the opaque result returned by a Profiler when it is disabled.
// Its encoding is defined by the Profiler implementation.
type Dataset []byte

// Profiler is the process-wide low-level profiler switch.
type Profiler interface {
	// Enable starts instrumentation.
	Enable()
	// Disable stops instrumentation and returns the collected dataset.
	Disable() Dataset
}

// StartDecision decides whether a session is fully profiled.
// It is consulted exactly once per session.
type StartDecision interface {
	ShouldProfile() bool
}

// DecisionFunc adapts a plain function to StartDecision.
type DecisionFunc func() bool

// ShouldProfile calls f.
func (f DecisionFunc) ShouldProfile() bool { return f() }

// Fixed is a StartDecision that always returns the same answer.
type Fixed bool

// ShouldProfile returns the fixed answer.
func (f Fixed) ShouldProfile() bool { return bool(f) }

var (
	// Always profiles every session.
	Always StartDecision = Fixed(true)
	// Never profiles; every session is only measured.
	Never StartDecision = Fixed(false)
)

// Backend receives finished sessions. Both methods are fire-and-forget:
// implementations handle their own failures.
type Backend interface {
	// StoreProfile receives a sampled session.
	StoreProfile(operationName string, data Dataset, timers []CustomTimer)
	// StoreMeasurement receives an unsampled session.
	StoreMeasurement(operationName string, durationMillis int64, operationType OperationType)
}

// InvocationContext exposes the hosting environment of a unit of work.
type InvocationContext interface {
	// IsWorker reports whether this is a batch/worker invocation rather
	// than a served request.
	IsWorker() bool
	// RequestMethod is the HTTP method of a served request.
	RequestMethod() string
	// RequestURI is the request path including its query string.
	RequestURI() string
	// ProgramName is the invoked program (argv[0]) of a worker.
	ProgramName() string
	// StatusCode is the HTTP response status, or 0 when unknown.
	StatusCode() int
	// LastError is the last error observed by the runtime, or nil.
	LastError() *FatalError
}

// ExitRegistrar accepts a callback to run once when the host terminates.
type ExitRegistrar interface {
	Register(fn func())
}

// emptyContext is used when no InvocationContext was configured.
type emptyContext struct{}

func (emptyContext) IsWorker() bool         { return false }
func (emptyContext) RequestMethod() string  { return "" }
func (emptyContext) RequestURI() string     { return "" }
func (emptyContext) ProgramName() string    { return "" }
func (emptyContext) StatusCode() int        { return 0 }
func (emptyContext) LastError() *FatalError { return nil }

// discardBackend drops everything.
type discardBackend struct{}

func (discardBackend) StoreProfile(string, Dataset, []CustomTimer)   {}
func (discardBackend) StoreMeasurement(string, int64, OperationType) {}
