// Package hostenv provides collector.InvocationContext implementations for
// worker processes and served HTTP requests.
package hostenv
