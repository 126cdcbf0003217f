// Package collector implements the profiling session controller embedded in
// host applications.
//
// A Collector drives one unit of work at a time: an HTTP request or a worker
// invocation. At Start it asks a StartDecision whether the unit of work should
// be profiled. Sampled sessions enable the underlying Profiler and may record
// custom timers; unsampled sessions only measure wall-clock duration. At Stop
// the collected data is handed to a Backend:
//
//	c := collector.New(backend, collector.Never,
//	    collector.WithInvocationContext(hostenv.NewProcess()),
//	    collector.WithExitRegistrar(exithook.Default),
//	)
//	c.Start()
//	h := c.StartCustomTimer("db", "select users")
//	rows := queryUsers()
//	c.StopCustomTimer(h)
//	c.Stop("")
//
// Sessions that record a fatal error (see LogFatal and Shutdown) are
// discarded at Stop: nothing is forwarded to the Backend for them.
//
// No operation of a Collector returns an error. Calls made outside their
// valid window (Stop without a session, unknown timer handles) are silent
// no-ops, and panics raised by collaborators during Start and Stop are
// recovered and logged.
//
// A Collector is not safe for concurrent use. Hosts that serve concurrent
// requests create one Collector per request (see package httpmw).
package collector
