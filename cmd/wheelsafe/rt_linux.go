//go:build linux

package main

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// rtPriority is the SCHED_FIFO priority for the control loop thread.
const rtPriority = 80

// setRealtimePriority moves the calling OS thread to SCHED_FIFO. The caller
// must have locked the goroutine to its thread.
func setRealtimePriority() error {
	attr := &unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: rtPriority,
	}
	if err := unix.SchedSetAttr(0, attr, 0); err != nil {
		return fmt.Errorf("set SCHED_FIFO on thread %d: %w", unix.Gettid(), err)
	}
	return nil
}
