// Package pipeline runs one deployment cycle.
//
// A cycle is a fixed sequence of stages over the deployment state: resolve the
// latest build, skip it if blocklisted, fetch it, check its signature, launch
// it, retire the previous instance and persist the outcome. A failing stage
// aborts the cycle and is reported as an *Error naming the stage.
package pipeline
