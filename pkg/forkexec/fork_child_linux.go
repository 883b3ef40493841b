package forkexec

import (
	"syscall"
	"unsafe"

	"github.com/acmoj/lrun/pkg/mount"
	"golang.org/x/sys/unix"
)

// Reference to src/syscall/exec_linux.go
//
//go:norace
func forkAndExecInChild(r *Runner, c *childArgs, p [2]int) (r1 uintptr, err1 syscall.Errno) {
	// Acquire the fork lock so that no other threads
	// create new fds that are not yet close-on-exec
	// before we fork.
	syscall.ForkLock.Lock()

	// About to call fork.
	// No more allocation or calls of non-assembly functions.
	beforeFork()

	// namespaces are activated by the clone flags; the mount namespace
	// is always unshared
	r1, _, err1 = syscall.RawSyscall6(syscall.SYS_CLONE,
		uintptr(syscall.SIGCHLD)|r.CloneFlags|syscall.CLONE_NEWNS, 0, 0, 0, 0, 0)
	if err1 != 0 || r1 != 0 {
		// in parent process, immediate return
		return
	}

	// In child process
	afterForkInChild()
	// Notice: cannot call any GO functions beyond this point

	pipe := p[1]
	var (
		ack     syscall.Errno
		wstatus uint32
	)

	// Close parent end of the pipe
	if _, _, err1 = syscall.RawSyscall(syscall.SYS_CLOSE, uintptr(p[0]), 0, 0); err1 != 0 {
		childExitError(pipe, LocCloseWrite, err1)
	}

	// Wait until the parent has written us into every cgroup subsystem
	r1, _, err1 = syscall.RawSyscall(syscall.SYS_READ, uintptr(pipe), uintptr(unsafe.Pointer(&ack)), unsafe.Sizeof(ack))
	if err1 != 0 || r1 != unsafe.Sizeof(ack) || ack != 0 {
		if err1 == 0 {
			err1 = syscall.EINVAL
		}
		childExitError(pipe, LocSyncRead, err1)
	}

	// UTS overrides, best effort
	if c.hostname != nil {
		syscall.RawSyscall(syscall.SYS_SETHOSTNAME,
			uintptr(unsafe.Pointer(c.hostname)), uintptr(len(r.HostName)), 0)
	}
	if c.domainname != nil {
		syscall.RawSyscall(syscall.SYS_SETDOMAINNAME,
			uintptr(unsafe.Pointer(c.domainname)), uintptr(len(r.DomainName)), 0)
	}

	// Mark every descriptor above stderr close-on-exec except the kept
	// ones; the error pipe and the status channel already carry the flag
	for i, cr := range c.closes {
		_, _, err1 = syscall.RawSyscall6(unix.SYS_CLOSE_RANGE,
			uintptr(cr.First), uintptr(cr.Last), unix.CLOSE_RANGE_CLOEXEC, 0, 0, 0)
		if err1 != 0 && err1 != syscall.ENOSYS && err1 != syscall.EINVAL {
			childExitErrorWithIndex(pipe, LocCloseRange, i, err1)
		}
	}

	// The mount namespace is fresh: make the root private so the plan
	// does not propagate to the original namespace
	_, _, err1 = syscall.RawSyscall6(syscall.SYS_MOUNT, uintptr(unsafe.Pointer(&none[0])),
		uintptr(unsafe.Pointer(&slash[0])), 0, syscall.MS_REC|syscall.MS_PRIVATE, 0, 0)
	if err1 != 0 {
		childExitError(pipe, LocMountRoot, err1)
	}

	// Execute the filesystem plan
	for i, m := range r.Steps {
		switch m.Op {
		case mount.OpMount:
			// mkdirs(target)
			for j, prefix := range m.Prefixes {
				// if target mount point is a file, mknod(target)
				if j == len(m.Prefixes)-1 && m.MakeNod {
					_, _, err1 = syscall.RawSyscall(unix.SYS_MKNODAT, uintptr(_AT_FDCWD), uintptr(unsafe.Pointer(prefix)), 0755)
					if err1 != 0 && err1 != syscall.EEXIST {
						childExitErrorWithIndex(pipe, LocMountMkdir, i, err1)
					}
					break
				}
				_, _, err1 = syscall.RawSyscall(unix.SYS_MKDIRAT, uintptr(_AT_FDCWD), uintptr(unsafe.Pointer(prefix)), 0755)
				if err1 != 0 && err1 != syscall.EEXIST {
					childExitErrorWithIndex(pipe, LocMountMkdir, i, err1)
				}
			}
			// mount(source, target, fsType, flags, data)
			_, _, err1 = syscall.RawSyscall6(syscall.SYS_MOUNT, uintptr(unsafe.Pointer(m.Source)),
				uintptr(unsafe.Pointer(m.Target)), uintptr(unsafe.Pointer(m.FsType)), m.Flags,
				uintptr(unsafe.Pointer(m.Data)), 0)
			if err1 != 0 {
				childExitErrorWithIndex(pipe, LocMount, i, err1)
			}

		case mount.OpChroot:
			_, _, err1 = syscall.RawSyscall(syscall.SYS_CHROOT, uintptr(unsafe.Pointer(m.Target)), 0, 0)
			if err1 != 0 {
				childExitErrorWithIndex(pipe, LocChroot, i, err1)
			}

		case mount.OpChdir:
			_, _, err1 = syscall.RawSyscall(syscall.SYS_CHDIR, uintptr(unsafe.Pointer(m.Target)), 0, 0)
			if err1 != 0 {
				childExitErrorWithIndex(pipe, LocChdir, i, err1)
			}

		case mount.OpMknod:
			_, _, err1 = syscall.RawSyscall6(unix.SYS_MKNODAT, uintptr(_AT_FDCWD),
				uintptr(unsafe.Pointer(m.Target)), uintptr(m.Mode), uintptr(m.Dev), 0, 0)
			if err1 != 0 && err1 != syscall.EEXIST {
				childExitErrorWithIndex(pipe, LocMknod, i, err1)
			}
		}
	}

	// Run the configured shell commands, still privileged
	for i, cmd := range c.cmds {
		r1, _, err1 = syscall.RawSyscall6(syscall.SYS_CLONE, uintptr(syscall.SIGCHLD), 0, 0, 0, 0, 0)
		if err1 != 0 {
			childExitErrorWithIndex(pipe, LocCommand, i, err1)
		}
		if r1 == 0 {
			// grandchild
			syscall.RawSyscall(unix.SYS_EXECVE, uintptr(unsafe.Pointer(cmd.argv0)),
				uintptr(unsafe.Pointer(&cmd.argv[0])), uintptr(unsafe.Pointer(&c.env[0])))
			syscall.RawSyscall(syscall.SYS_EXIT, 127, 0, 0)
		}
		_, _, err1 = syscall.RawSyscall6(syscall.SYS_WAIT4, r1, uintptr(unsafe.Pointer(&wstatus)), 0, 0, 0, 0)
		if err1 != 0 {
			childExitErrorWithIndex(pipe, LocCommand, i, err1)
		}
		if wstatus != 0 {
			childExitErrorWithIndex(pipe, LocCommand, i, syscall.EINVAL)
		}
	}

	// umask
	syscall.RawSyscall(unix.SYS_UMASK, uintptr(r.Umask), 0, 0)

	// Drop privileges; nothing below this point may require root
	if cred := r.Credential; cred != nil {
		_, _, err1 = syscall.RawSyscall(unix.SYS_SETGID, uintptr(cred.Gid), 0, 0)
		if err1 != 0 {
			childExitError(pipe, LocSetGid, err1)
		}
		_, _, err1 = syscall.RawSyscall(unix.SYS_SETGROUPS, 0, 0, 0)
		if err1 != 0 {
			childExitError(pipe, LocSetGroups, err1)
		}
		_, _, err1 = syscall.RawSyscall(unix.SYS_SETUID, uintptr(cred.Uid), 0, 0)
		if err1 != 0 {
			childExitError(pipe, LocSetUid, err1)
		}
	}

	// Set limits
	for i, rlim := range r.RLimits {
		// prlimit instead of setrlimit to avoid 32-bit limitation (linux > 3.2)
		_, _, err1 = syscall.RawSyscall6(syscall.SYS_PRLIMIT64, 0, uintptr(rlim.Res), uintptr(unsafe.Pointer(&rlim.Rlim)), 0, 0, 0)
		if err1 != 0 {
			childExitErrorWithIndex(pipe, LocSetRlimit, i, err1)
		}
	}

	// nice
	if r.Nice != 0 {
		_, _, err1 = syscall.RawSyscall(unix.SYS_SETPRIORITY, uintptr(unix.PRIO_PROCESS), 0, uintptr(r.Nice))
		if err1 != 0 {
			childExitError(pipe, LocSetPriority, err1)
		}
	}

	// No new privs, required before the seccomp install for non-root
	if r.NoNewPrivs {
		_, _, err1 = syscall.RawSyscall6(syscall.SYS_PRCTL, unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0, 0)
		if err1 != 0 {
			childExitError(pipe, LocSetNoNewPrivs, err1)
		}
	}

	// Load seccomp filter
	if r.Seccomp != nil {
		_, _, err1 = syscall.RawSyscall(unix.SYS_SECCOMP, SECCOMP_SET_MODE_FILTER, SECCOMP_FILTER_FLAG_TSYNC, uintptr(unsafe.Pointer(r.Seccomp)))
		if err1 != 0 {
			childExitError(pipe, LocSeccomp, err1)
		}
	}

	// time to exec; the error pipe is close-on-exec so success is EOF
	_, _, err1 = syscall.RawSyscall(unix.SYS_EXECVE, uintptr(unsafe.Pointer(c.argv0)),
		uintptr(unsafe.Pointer(&c.argv[0])), uintptr(unsafe.Pointer(&c.env[0])))
	childExitError(pipe, LocExecve, err1)
	return
}

//go:nosplit
func childExitError(pipe int, loc ErrorLocation, err syscall.Errno) {
	// send error code on pipe
	childError := ChildError{
		Err:      err,
		Location: loc,
	}

	syscall.RawSyscall(unix.SYS_WRITE, uintptr(pipe), uintptr(unsafe.Pointer(&childError)), unsafe.Sizeof(childError))
	for {
		syscall.RawSyscall(syscall.SYS_EXIT, uintptr(err), 0, 0)
	}
}

//go:nosplit
func childExitErrorWithIndex(pipe int, loc ErrorLocation, idx int, err syscall.Errno) {
	// send error code on pipe
	childError := ChildError{
		Err:      err,
		Location: loc,
		Index:    idx,
	}

	syscall.RawSyscall(unix.SYS_WRITE, uintptr(pipe), uintptr(unsafe.Pointer(&childError)), unsafe.Sizeof(childError))
	for {
		syscall.RawSyscall(syscall.SYS_EXIT, uintptr(err), 0, 0)
	}
}
