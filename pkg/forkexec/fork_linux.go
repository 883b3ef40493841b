package forkexec

import (
	"syscall"
	"unsafe" // required for go:linkname.

	"golang.org/x/sys/unix"
)

//go:linkname beforeFork syscall.runtime_BeforeFork
func beforeFork()

//go:linkname afterFork syscall.runtime_AfterFork
func afterFork()

//go:linkname afterForkInChild syscall.runtime_AfterForkInChild
func afterForkInChild()

// childArgs carries every pre-marshaled parameter the child pipeline needs;
// nothing may be allocated after clone.
type childArgs struct {
	argv0      *byte
	argv, env  []*byte
	hostname   *byte
	domainname *byte
	closes     []fdRange
	cmds       []shellCmd
}

type shellCmd struct {
	argv0 *byte
	argv  []*byte
}

// Start clones the child with the requested namespace flags (plus a new
// mount namespace), synchronizes the cgroup attach through the error pipe,
// and waits for the child to exec. The returned error is a *ChildError when
// the child's setup pipeline failed.
func (r *Runner) Start() (int, error) {
	var c childArgs
	var err error

	c.argv0, c.argv, c.env, err = prepareExec(r.Args, r.Env)
	if err != nil {
		return 0, err
	}
	c.hostname, err = syscallStringFromString(r.HostName)
	if err != nil {
		return 0, err
	}
	c.domainname, err = syscallStringFromString(r.DomainName)
	if err != nil {
		return 0, err
	}
	c.closes = prepareCloseRanges(r.KeepFds)
	for _, cmd := range r.Commands {
		argv0, argv, err := shellArgv(cmd)
		if err != nil {
			return 0, err
		}
		c.cmds = append(c.cmds, shellCmd{argv0: argv0, argv: argv})
	}

	// socketpair p synchronizes the cgroup attach and reports setup
	// failures; p[0] belongs to the parent, p[1] to the child
	p, err := syscall.Socketpair(syscall.AF_LOCAL, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}

	// fork in child
	pid, err1 := forkAndExecInChild(r, &c, p)

	// restore all signals
	afterFork()
	syscall.ForkLock.Unlock()

	return syncWithChild(r, p, int(pid), err1)
}

func syncWithChild(r *Runner, p [2]int, pid int, err1 syscall.Errno) (int, error) {
	var (
		childErr ChildError
		err      error
	)

	unix.Close(p[1])

	// clone syscall failed
	if err1 != 0 {
		unix.Close(p[0])
		return 0, ChildError{Err: err1, Location: LocClone}
	}

	// attach the child to the cgroup before it proceeds with setup
	var ack syscall.Errno
	if r.SyncFunc != nil {
		if err = r.SyncFunc(pid); err != nil {
			ack = syscall.EINVAL
		}
	}
	syscall.RawSyscall(syscall.SYS_WRITE, uintptr(p[0]), uintptr(unsafe.Pointer(&ack)), unsafe.Sizeof(ack))
	if ack != 0 {
		unix.Close(p[0])
		handleChildFailed(pid)
		return 0, err
	}

	// the pipe is close-on-exec: EOF means the exec succeeded, a
	// ChildError record means a setup step failed
	n, _, errno := syscall.Syscall(syscall.SYS_READ, uintptr(p[0]), uintptr(unsafe.Pointer(&childErr)), unsafe.Sizeof(childErr))
	unix.Close(p[0])
	if n == 0 && errno == 0 {
		return pid, nil
	}
	if n != unsafe.Sizeof(childErr) || errno != 0 {
		childErr = ChildError{Err: syscall.EPIPE, Location: LocClone}
	}
	handleChildFailed(pid)
	return 0, childErr
}

func handleChildFailed(pid int) {
	var wstatus syscall.WaitStatus
	// make sure not blocked
	syscall.Kill(pid, syscall.SIGKILL)
	// wait for the child to exit so the zombie does not accumulate
	_, err := syscall.Wait4(pid, &wstatus, 0, nil)
	for err == syscall.EINTR {
		_, err = syscall.Wait4(pid, &wstatus, 0, nil)
	}
}
