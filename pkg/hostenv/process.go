package hostenv

import (
	"os"
	"sync"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/coral-mesh/coral-collect/pkg/collector"
)

// Process is the invocation context of a worker: the whole process is the
// unit of work.
type Process struct {
	program string

	mu      sync.Mutex
	lastErr *collector.FatalError
}

var _ collector.InvocationContext = (*Process)(nil)

// NewProcess creates a worker context for the running process.
func NewProcess() *Process {
	return NewProcessWithArgs(os.Args)
}

// NewProcessWithArgs creates a worker context from an explicit argv.
func NewProcessWithArgs(args []string) *Process {
	p := &Process{}
	if len(args) > 0 {
		p.program = args[0]
	}
	return p
}

// IsWorker always returns true.
func (p *Process) IsWorker() bool { return true }

// RequestMethod is always empty for workers.
func (p *Process) RequestMethod() string { return "" }

// RequestURI is always empty for workers.
func (p *Process) RequestURI() string { return "" }

// StatusCode is always unknown for workers.
func (p *Process) StatusCode() int { return 0 }

// ProgramName returns argv[0], falling back to the executable name reported
// by the OS.
func (p *Process) ProgramName() string {
	if p.program != "" {
		return p.program
	}
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return ""
	}
	name, err := proc.Name()
	if err != nil {
		return ""
	}
	return name
}

// LastError returns the last recorded error.
func (p *Process) LastError() *collector.FatalError {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// RecordError records an error observed by the host.
func (p *Process) RecordError(kind collector.ErrorKind, message, file string, line int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = &collector.FatalError{Message: message, File: file, Line: line, Kind: kind}
}

// RecordPanic records a recovered panic as a runtime error. Its signature
// matches exithook.PanicObserver.
func (p *Process) RecordPanic(v any, stack []byte) {
	fatal := panicError(v, stack)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = fatal
}
