package collector

import (
	"time"
)

type profileCall struct {
	name   string
	data   Dataset
	timers []CustomTimer
}

type measurementCall struct {
	name   string
	millis int64
	opType OperationType
}

type fakeBackend struct {
	profiles     []profileCall
	measurements []measurementCall
}

func (b *fakeBackend) StoreProfile(name string, data Dataset, timers []CustomTimer) {
	b.profiles = append(b.profiles, profileCall{name: name, data: data, timers: timers})
}

func (b *fakeBackend) StoreMeasurement(name string, millis int64, opType OperationType) {
	b.measurements = append(b.measurements, measurementCall{name: name, millis: millis, opType: opType})
}

func (b *fakeBackend) calls() int {
	return len(b.profiles) + len(b.measurements)
}

type fakeProfiler struct {
	enabled  bool
	enables  int
	disables int
	data     Dataset
}

func (p *fakeProfiler) Enable() {
	p.enabled = true
	p.enables++
}

func (p *fakeProfiler) Disable() Dataset {
	p.enabled = false
	p.disables++
	return p.data
}

type fakeDecision struct {
	answer bool
	calls  int
}

func (d *fakeDecision) ShouldProfile() bool {
	d.calls++
	return d.answer
}

type fakeContext struct {
	worker  bool
	method  string
	uri     string
	program string
	status  int
	lastErr *FatalError
}

func (f *fakeContext) IsWorker() bool         { return f.worker }
func (f *fakeContext) RequestMethod() string  { return f.method }
func (f *fakeContext) RequestURI() string     { return f.uri }
func (f *fakeContext) ProgramName() string    { return f.program }
func (f *fakeContext) StatusCode() int        { return f.status }
func (f *fakeContext) LastError() *FatalError { return f.lastErr }

type fakeRegistrar struct {
	hooks []func()
}

func (r *fakeRegistrar) Register(fn func()) {
	r.hooks = append(r.hooks, fn)
}

func (r *fakeRegistrar) run() {
	for _, fn := range r.hooks {
		fn()
	}
}

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	backend   *fakeBackend
	profiler  *fakeProfiler
	decision  *fakeDecision
	ctx       *fakeContext
	registrar *fakeRegistrar
	clock     *fakeClock
	guard     *HookGuard
	collector *Collector
}

func newHarness(sampled bool, ctx *fakeContext) *harness {
	h := &harness{
		backend:   &fakeBackend{},
		profiler:  &fakeProfiler{data: Dataset("pprof-bytes")},
		decision:  &fakeDecision{answer: sampled},
		ctx:       ctx,
		registrar: &fakeRegistrar{},
		clock:     newFakeClock(),
		guard:     &HookGuard{},
	}
	h.collector = New(h.backend, h.decision,
		WithProfiler(h.profiler),
		WithInvocationContext(h.ctx),
		WithExitRegistrar(h.registrar),
		WithHookGuard(h.guard),
		WithClock(h.clock.Now),
	)
	return h
}

func webRequest(method, uri string) *fakeContext {
	return &fakeContext{method: method, uri: uri}
}

func workerInvocation(program string) *fakeContext {
	return &fakeContext{worker: true, program: program}
}
