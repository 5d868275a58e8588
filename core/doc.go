// Package core holds the integration contracts, the error taxonomy, the
// lifecycle event bus and the adapter registry. Vendor adapters and the
// webhook dispatcher depend on this package; it depends on neither.
package core
