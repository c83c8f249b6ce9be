// Package actuator talks to the payload management endpoint.
//
// GetStatus classifies the health answer as UP, DOWN (reachable, not up) or
// UNKNOWN (unreachable, failed or malformed). Shutdown is a best-effort POST.
package actuator
