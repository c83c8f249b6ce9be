// Package supervisor owns the deploy manager process: it loads the
// configuration, restores the persisted deployment, runs deployment cycles on
// the configured schedule and serves the gRPC status endpoint.
package supervisor
