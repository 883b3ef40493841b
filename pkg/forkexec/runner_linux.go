package forkexec

import (
	"syscall"

	"github.com/acmoj/lrun/pkg/mount"
	"github.com/acmoj/lrun/pkg/rlimit"
)

// Runner is the per-run configuration of the child: the exec target plus
// every irreversible kernel operation applied between clone and exec.
type Runner struct {
	// argv and env for the execve syscall; Args[0] must be a resolved
	// path since the child cannot walk PATH
	Args []string
	Env  []string

	// clone unshare flags for the requested namespaces; CLONE_NEWNS is
	// always added by Start
	CloneFlags uintptr

	// hostname and domainname applied after unshare UTS
	HostName, DomainName string

	// KeepFds are descriptors left open across exec; everything else
	// above stderr is marked close-on-exec via close_range
	KeepFds []int

	// Steps is the marshaled filesystem plan executed inside the new
	// mount namespace
	Steps []mount.SyscallParams

	// Commands are shell commands run by the child after the filesystem
	// plan, before the credential drop (root only)
	Commands []string

	// Umask applied before the credential drop
	Umask uint32

	// Credential is the uid/gid the child assumes; supplementary groups
	// are cleared at the same time
	Credential *syscall.Credential

	// POSIX resource limits applied via prlimit64
	RLimits []rlimit.RLimit

	// Nice value applied via setpriority
	Nice int

	// no_new_privs, required before a non-root seccomp install
	NoNewPrivs bool

	// seccomp filter installed with TSYNC right before exec
	Seccomp *syscall.SockFprog

	// SyncFunc is invoked with the child pid after clone and before the
	// child starts its setup; the supervisor uses it to attach the child
	// to the cgroup. A non-nil error aborts the child.
	SyncFunc func(pid int) error
}
