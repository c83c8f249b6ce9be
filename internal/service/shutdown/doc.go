// Package shutdown retires the previously running payload instance once its
// successor is healthy.
package shutdown
