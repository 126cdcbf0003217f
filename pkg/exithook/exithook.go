// Package exithook runs cleanup callbacks once when main returns or panics.
//
// Termination signals never run hooks directly. Notify turns them into a
// canceled context so the work returns and the deferred Run fires on the
// goroutine that owns it.
//
// Run is meant to be deferred directly from main:
//
//	func main() {
//	    defer exithook.Run()
//	    ...
//	}
//
// When main panics, Run reports the panic to the registered observers,
// runs the hooks and re-raises the panic.
package exithook

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"
)

// PanicObserver is notified about a panic before hooks run.
type PanicObserver func(v any, stack []byte)

// Registry holds exit hooks.
type Registry struct {
	mu        sync.Mutex
	hooks     []func()
	observers []PanicObserver
	once      sync.Once
	ran       bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// Default is the process registry used by the package-level functions.
var Default = New()

// Register adds fn. Hooks run in reverse registration order.
// Hooks registered after the registry ran are ignored.
func (r *Registry) Register(fn func()) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ran {
		return
	}
	r.hooks = append(r.hooks, fn)
}

// ObservePanic adds a panic observer.
func (r *Registry) ObservePanic(fn PanicObserver) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Run recovers a panic in progress, runs the hooks once and re-panics.
// It must be deferred directly for the recovery to take effect.
func (r *Registry) Run() {
	p := recover()
	if p != nil {
		r.notifyPanic(p, debug.Stack())
	}
	r.runHooks()
	if p != nil {
		panic(p)
	}
}

// Hooks runs the hooks once without touching panics.
func (r *Registry) Hooks() {
	r.runHooks()
}

// Ran reports whether the hooks have run.
func (r *Registry) Ran() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ran
}

// SignalError is the cancellation cause set by Notify.
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("received signal %s", e.Signal)
}

// Notify returns a copy of ctx that is canceled when SIGINT or SIGTERM
// arrives. context.Cause reports the signal as a *SignalError. The hooks
// are left to the deferred Run. Call stop to release the signal handler.
func Notify(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-ctx.Done():
		case sig := <-sigChan:
			cancel(&SignalError{Signal: sig})
		}
	}()

	return ctx, func() { cancel(nil) }
}

func (r *Registry) notifyPanic(v any, stack []byte) {
	r.mu.Lock()
	observers := make([]PanicObserver, len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()

	for _, fn := range observers {
		fn(v, stack)
	}
}

func (r *Registry) runHooks() {
	r.once.Do(func() {
		r.mu.Lock()
		r.ran = true
		hooks := r.hooks
		r.hooks = nil
		r.mu.Unlock()

		for i := len(hooks) - 1; i >= 0; i-- {
			runHook(hooks[i])
		}
	})
}

// runHook keeps one failing hook from skipping the others.
func runHook(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// Register adds fn to the Default registry.
func Register(fn func()) { Default.Register(fn) }

// ObservePanic adds fn to the Default registry.
func ObservePanic(fn PanicObserver) { Default.ObservePanic(fn) }

// Run runs the Default registry. Defer it directly from main.
// recover only works in the deferred function itself, so this cannot
// delegate to Default.Run.
func Run() {
	p := recover()
	if p != nil {
		Default.notifyPanic(p, debug.Stack())
	}
	Default.runHooks()
	if p != nil {
		panic(p)
	}
}
