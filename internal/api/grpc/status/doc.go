// Package status exposes the payload health, as last observed by the
// supervisor, through the standard gRPC health checking service.
package status
