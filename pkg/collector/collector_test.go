package collector

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_UnsampledDoesNotEnableProfiler(t *testing.T) {
	h := newHarness(false, webRequest("GET", "/"))

	h.collector.Start()

	assert.True(t, h.collector.IsStarted())
	assert.False(t, h.collector.IsSampled())
	assert.Equal(t, 0, h.profiler.enables)
	assert.Equal(t, 1, h.decision.calls)
}

func TestStart_SampledEnablesProfiler(t *testing.T) {
	h := newHarness(true, webRequest("GET", "/"))

	h.collector.Start()

	assert.True(t, h.collector.IsSampled())
	assert.True(t, h.profiler.enabled)
	assert.Equal(t, 1, h.profiler.enables)
}

func TestStart_IsIdempotentWhileActive(t *testing.T) {
	h := newHarness(true, webRequest("GET", "/"))

	h.collector.Start()
	h.collector.SetOperationName("kept")
	timer := h.collector.StartCustomTimer("db", "select")
	h.collector.LogFatal("boom", "main.go", 10, KindUser)

	h.collector.Start()

	assert.True(t, h.collector.IsStarted())
	assert.Equal(t, "kept", h.collector.OperationName())
	assert.Len(t, h.collector.Timers(), 1)
	assert.NotNil(t, h.collector.Fatal())
	assert.Equal(t, TimerHandle(0), timer)
	assert.Equal(t, 1, h.decision.calls, "decision must be consulted once per session")
	assert.Equal(t, 1, h.profiler.enables, "profiler must not be enabled twice")
}

func TestStart_ClassifiesOperationType(t *testing.T) {
	web := newHarness(false, webRequest("GET", "/"))
	web.collector.Start()
	assert.Equal(t, OperationWeb, web.collector.OperationType())

	worker := newHarness(false, workerInvocation("/usr/bin/job"))
	worker.collector.Start()
	assert.Equal(t, OperationWorker, worker.collector.OperationType())
}

func TestStart_InstallsExitHookOnce(t *testing.T) {
	h := newHarness(false, webRequest("GET", "/"))

	h.collector.Start()
	h.collector.Stop("")
	h.collector.Start()
	h.collector.Stop("")

	assert.Len(t, h.registrar.hooks, 1)
	assert.True(t, h.guard.Installed())
}

func TestStart_ExitHookSharedAcrossCollectors(t *testing.T) {
	guard := &HookGuard{}
	registrar := &fakeRegistrar{}

	first := New(&fakeBackend{}, Never, WithExitRegistrar(registrar), WithHookGuard(guard))
	second := New(&fakeBackend{}, Never, WithExitRegistrar(registrar), WithHookGuard(guard))

	first.Start()
	second.Start()

	assert.Len(t, registrar.hooks, 1)
}

func TestStart_WithoutRegistrarLeavesGuardUntouched(t *testing.T) {
	guard := &HookGuard{}
	c := New(&fakeBackend{}, Never, WithHookGuard(guard))

	c.Start()

	assert.False(t, guard.Installed())
}

func TestStop_WithoutSessionIsNoop(t *testing.T) {
	h := newHarness(true, webRequest("GET", "/"))

	h.collector.Stop("")
	h.collector.Shutdown()

	assert.Equal(t, 0, h.backend.calls())
	assert.Equal(t, 0, h.profiler.disables)
	assert.False(t, h.collector.IsStarted())
}

func TestStop_SampledStoresProfile(t *testing.T) {
	h := newHarness(true, webRequest("GET", "/items?page=2"))

	h.collector.Start()
	timer := h.collector.StartCustomTimer("db", "select")
	h.clock.Advance(5000 * time.Microsecond)
	h.collector.StopCustomTimer(timer)
	h.collector.Stop("")

	require.Len(t, h.backend.profiles, 1)
	assert.Empty(t, h.backend.measurements)

	call := h.backend.profiles[0]
	assert.Equal(t, "GET /items", call.name)
	assert.Equal(t, Dataset("pprof-bytes"), call.data)
	require.Len(t, call.timers, 1)
	assert.Equal(t, "db", call.timers[0].Group)
	assert.Equal(t, "select", call.timers[0].Label)
	assert.Equal(t, int64(5000), call.timers[0].DurationMicros)
	assert.True(t, call.timers[0].Closed)

	assert.Equal(t, 1, h.profiler.disables)
	assert.False(t, h.profiler.enabled)
	assert.False(t, h.collector.IsStarted())
}

func TestStop_UnsampledStoresMeasurement(t *testing.T) {
	h := newHarness(false, workerInvocation("/opt/jobs/myscript"))

	h.collector.Start()
	h.clock.Advance(250 * time.Millisecond)
	h.collector.Stop("")

	require.Len(t, h.backend.measurements, 1)
	assert.Empty(t, h.backend.profiles)
	assert.Equal(t, measurementCall{name: "myscript", millis: 250, opType: OperationWorker}, h.backend.measurements[0])
	assert.Equal(t, 0, h.profiler.disables)
}

func TestStop_RoundsMillisToNearest(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		expected int64
	}{
		{name: "rounds down", elapsed: 10*time.Millisecond + 499*time.Microsecond, expected: 10},
		{name: "rounds half up", elapsed: 10*time.Millisecond + 500*time.Microsecond, expected: 11},
		{name: "zero", elapsed: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(false, webRequest("GET", "/"))
			h.collector.Start()
			h.clock.Advance(tt.elapsed)
			h.collector.Stop("")

			require.Len(t, h.backend.measurements, 1)
			assert.Equal(t, tt.expected, h.backend.measurements[0].millis)
		})
	}
}

func TestStop_OperationNameResolution(t *testing.T) {
	tests := []struct {
		name     string
		ctx      *fakeContext
		setName  string
		stopName string
		expected string
	}{
		{name: "web strips query", ctx: webRequest("POST", "/orders?id=7&x=1"), expected: "POST /orders"},
		{name: "web without query", ctx: webRequest("GET", "/health"), expected: "GET /health"},
		{name: "worker uses base name", ctx: workerInvocation("./bin/import-users"), expected: "import-users"},
		{name: "explicit name wins over guess", ctx: webRequest("GET", "/a"), setName: "checkout", expected: "checkout"},
		{name: "stop argument overrides set name", ctx: webRequest("GET", "/a"), setName: "checkout", stopName: "pay", expected: "pay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(false, tt.ctx)
			h.collector.Start()
			if tt.setName != "" {
				h.collector.SetOperationName(tt.setName)
			}
			h.collector.Stop(tt.stopName)

			require.Len(t, h.backend.measurements, 1)
			assert.Equal(t, tt.expected, h.backend.measurements[0].name)
		})
	}
}

func TestStop_SetOperationTypeOverridesInference(t *testing.T) {
	h := newHarness(false, webRequest("GET", "/cron"))

	h.collector.Start()
	h.collector.SetOperationType(OperationWorker)
	h.collector.Stop("")

	require.Len(t, h.backend.measurements, 1)
	assert.Equal(t, OperationWorker, h.backend.measurements[0].opType)
	assert.Equal(t, "GET /cron", h.backend.measurements[0].name, "name guessing follows the invocation, not the type")
}

func TestStop_FatalSuppressesStorage(t *testing.T) {
	for _, sampled := range []bool{true, false} {
		h := newHarness(sampled, webRequest("GET", "/"))

		h.collector.Start()
		h.collector.LogUserFatal("bad input", "handler.go", 42)
		h.collector.Stop("")

		assert.Equal(t, 0, h.backend.calls(), "sampled=%v", sampled)
		assert.False(t, h.collector.IsStarted())
	}
}

func TestStop_SampledDisablesProfilerEvenWhenFatal(t *testing.T) {
	h := newHarness(true, webRequest("GET", "/"))

	h.collector.Start()
	h.collector.LogFatal("boom", "", 0, KindRuntime)
	h.collector.Stop("")

	assert.Equal(t, 1, h.profiler.disables)
	assert.False(t, h.profiler.enabled)
}

func TestStop_DoesNotClearTimersOrFatal(t *testing.T) {
	h := newHarness(true, webRequest("GET", "/"))

	h.collector.Start()
	h.collector.StopCustomTimer(h.collector.StartCustomTimer("cache", "get"))
	h.collector.LogFatal("boom", "", 0, KindUser)
	h.collector.Stop("")

	assert.Len(t, h.collector.Timers(), 1)
	assert.NotNil(t, h.collector.Fatal())
}

func TestSessions_DoNotLeak(t *testing.T) {
	h := newHarness(true, webRequest("GET", "/first"))

	h.collector.Start()
	h.collector.SetOperationName("first")
	h.collector.StartCustomTimer("db", "a")
	h.collector.LogFatal("boom", "", 0, KindUser)
	h.collector.Stop("")

	h.collector.Start()
	assert.Empty(t, h.collector.Timers())
	assert.Empty(t, h.collector.OperationName())
	assert.Nil(t, h.collector.Fatal())

	h.clock.Advance(time.Millisecond)
	h.collector.StopCustomTimer(h.collector.StartCustomTimer("http", "b"))
	h.collector.Stop("")

	require.Len(t, h.backend.profiles, 1)
	call := h.backend.profiles[0]
	assert.Equal(t, "GET /first", call.name)
	require.Len(t, call.timers, 1)
	assert.Equal(t, "http", call.timers[0].Group)
}

func TestStop_RecoversBackendPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	c := New(panickingBackend{}, Never, WithLogger(logger))
	c.Start()

	assert.NotPanics(t, func() { c.Stop("") })
	assert.False(t, c.IsStarted())
	assert.Contains(t, buf.String(), "Recovered panic in profiling collaborator")
}

func TestNew_NilCollaborators(t *testing.T) {
	c := New(nil, nil)

	assert.NotPanics(t, func() {
		c.Start()
		c.Stop("")
		c.Shutdown()
	})
	assert.False(t, c.IsSampled())
}

func TestDecisionAdapters(t *testing.T) {
	assert.True(t, Always.ShouldProfile())
	assert.False(t, Never.ShouldProfile())
	assert.True(t, DecisionFunc(func() bool { return true }).ShouldProfile())
}

type panickingBackend struct{}

func (panickingBackend) StoreProfile(string, Dataset, []CustomTimer) { panic("storage down") }

func (panickingBackend) StoreMeasurement(string, int64, OperationType) { panic("storage down") }
