// Package state persists the deployment state between supervisor runs.
//
// The FileRepository stores the running build and the blocklist as YAML on
// disk and exposes a Repository interface that the supervisor depends on.
package state
