// Package sync tracks long-running import and export operations and runs
// queued sync executions.
package sync
