package forkexec

import "golang.org/x/sys/unix"

// defines missing consts from syscall package
const (
	SECCOMP_SET_MODE_FILTER   = 1
	SECCOMP_FILTER_FLAG_TSYNC = 1
)

// used by the child between clone and exec
var (
	none  = [...]byte{'n', 'o', 'n', 'e', 0}
	slash = [...]byte{'/', 0}

	// go does not allow constant uintptr to be negative...
	_AT_FDCWD = unix.AT_FDCWD
)
