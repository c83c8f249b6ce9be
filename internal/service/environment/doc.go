// Package environment computes the environment of the payload child process.
package environment
