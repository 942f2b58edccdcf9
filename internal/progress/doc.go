// Package progress models progress-channel updates and reconciles them into
// bar render frames. The reducer is pure so it can be exercised without any
// transport or view; the monitor loop owns the State value and applies the
// returned frames to its view.
package progress
