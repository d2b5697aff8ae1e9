//go:build !linux

package main

// setRealtimePriority is a no-op where SCHED_FIFO is unavailable.
func setRealtimePriority() error {
	return nil
}
