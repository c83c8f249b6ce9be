// Package launcher starts the payload as a child process and waits, for a
// bounded time, until its management endpoint reports UP.
//
// Launch never returns an error: a start failure, an early exit and a
// startup timeout all produce a FAILED LaunchResult, and the child handle is
// cancelled on every failure after the process started.
package launcher
