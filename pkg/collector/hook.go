package collector

import "sync"

// HookGuard records whether the exit hook has been installed.
// Once tripped it stays tripped.
type HookGuard struct {
	mu        sync.Mutex
	installed bool
}

// ProcessHookGuard is shared by every Collector of the process unless
// WithHookGuard overrides it.
var ProcessHookGuard = &HookGuard{}

// TryInstall trips the guard and reports whether this call did so.
func (g *HookGuard) TryInstall() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.installed {
		return false
	}
	g.installed = true
	return true
}

// Installed reports whether the guard has been tripped.
func (g *HookGuard) Installed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.installed
}
