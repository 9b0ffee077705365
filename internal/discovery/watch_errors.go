package discovery

import (
	"errors"
	"slices"
	"syscall"
)

// exhaustionErrnos mean the kernel refused more watches or descriptors.
// fsnotify keeps running after them but silently misses changes.
var exhaustionErrnos = []syscall.Errno{syscall.ENOSPC, syscall.EMFILE, syscall.ENFILE}

// watchErrorIsFatal reports whether err from the fsnotify error channel
// should stop the watcher. Queue overflow and per-path failures are not.
func watchErrorIsFatal(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	return slices.Contains(exhaustionErrnos, errno)
}
