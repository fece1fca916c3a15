/*
Package tracing taps a built graph's lifecycle to produce execution traces
without touching node logic. Instrument walks a graph once and wraps every
node in a decorator that emits a trace event on the shared context's event
bus before and after each lifecycle phase; Collect bundles instrumenting,
listening, and tearing down around a single driven run.
*/
package tracing
