// Package auth attaches integration credentials to outbound transport
// requests. Apply handles one request; Transport decorates an adapter so
// every call is authorized from a CredentialSource.
package auth
