package forkexec

import (
	"fmt"
	"syscall"
)

// ErrorLocation defines the setup step where the child failed.
type ErrorLocation int

// ChildError is the failure record the child sends over the error pipe.
type ChildError struct {
	Err      syscall.Errno
	Location ErrorLocation
	Index    int
}

// Location constants
const (
	LocClone ErrorLocation = iota + 1
	LocCloseWrite
	LocSyncRead
	LocCloseRange
	LocMountRoot
	LocMountMkdir
	LocMount
	LocChroot
	LocChdir
	LocMknod
	LocCommand
	LocSetGroups
	LocSetGid
	LocSetUid
	LocSetRlimit
	LocSetPriority
	LocSetNoNewPrivs
	LocSeccomp
	LocExecve
)

var locToString = []string{
	"unknown",
	"clone",
	"close_write",
	"sync_read",
	"close_range",
	"mount(root)",
	"mount(mkdir)",
	"mount",
	"chroot",
	"chdir",
	"mknod",
	"command",
	"setgroups",
	"setgid",
	"setuid",
	"setrlimit",
	"setpriority",
	"set_no_new_privs",
	"seccomp",
	"execve",
}

func (e ErrorLocation) String() string {
	if e >= LocClone && e <= LocExecve {
		return locToString[e]
	}
	return "unknown"
}

func (e ChildError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("%s(%d): %s", e.Location.String(), e.Index, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Location.String(), e.Err.Error())
}

// ExitCode maps the failure location to the supervisor's exit code space
// for spawn errors.
func (e ChildError) ExitCode() int {
	return 10 + int(e.Location)
}
