// Package deployment contains the value types of a deployment cycle.
//
// Application is the per-cycle record the pipeline mutates: the instance
// currently running and the newest build discovered. Metadata, LaunchResult,
// HealthStatus and SignerKey are immutable values exchanged between the
// pipeline stages and the services they call.
package deployment
