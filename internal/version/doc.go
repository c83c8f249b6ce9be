// Package version exposes build metadata of the deploy manager.
//
// Version, Commit and BuildTime are injected with -ldflags at build time.
package version
