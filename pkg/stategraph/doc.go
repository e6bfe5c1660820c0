// Package stategraph provides the public façade for declaring and running
// state graphs without importing internal packages. It re-exports the core
// state, graph and error types and exposes a Runtime that keeps a registry of
// compiled graphs, runs them, and optionally records every run to a history
// store.
package stategraph
