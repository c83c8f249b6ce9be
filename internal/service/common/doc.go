// Package common holds helpers shared by several services: an HTTP client
// factory mapping connect/read timeouts, a process table lookup, and a gRPC
// client for the supervisor status endpoint.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
