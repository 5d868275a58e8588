// Package inbound exposes webhook dispatch over HTTP.
//
// The raw request body is handed to the dispatcher untouched so signatures
// are verified against the exact bytes the provider signed.
package inbound
