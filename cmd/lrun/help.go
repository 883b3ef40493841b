package main

import (
	"fmt"
	"os"
)

const version = "1.0.0"

const generalHelp = `Run program with resources limited.

Usage: lrun [options] [--] command-args [3>stat]

Options:
  --max-cpu-time    seconds     Limit cpu time. ` + "`seconds`" + ` can be a floating-point number
  --max-real-time   seconds     Limit physical time
  --max-memory      bytes       Limit memory (+swap) usage. ` + "`bytes`" + ` supports common suffix like ` + "`k`, `m`, `g`" + `
  --max-output      bytes       Limit output. Note: lrun will make a "best effort" to enforce the limit but it is NOT accurate
  --max-rtprio      n           Set max realtime priority
  --max-nfile       n           Set max number of file descriptors
  --max-stack       bytes       Set max stack size per process
  --max-nprocess    n           Set RLIMIT_NPROC. Note: user namespace is not separated, current processes are counted
  --isolate-process bool        Isolate PID, IPC namespace
  --basic-devices   bool        Enable device whitelist: null, zero, full, random, urandom, tty, ptmx, pts
  --remount-dev     bool        Remount /dev and create only basic device files in it (see --basic-devices)
  --reset-env       bool        Clean environment variables
  --network         bool        Whether network access is permitted
  --pass-exitcode   bool        Discard lrun exit code, pass child process's exit code
  --chroot          path        Chroot to specified ` + "`path`" + ` before exec
  --chdir           path        Chdir to specified ` + "`path`" + ` after chroot
  --nice            value       Add nice with specified ` + "`value`" + `. Only root can use a negative value
  --umask           int         Set umask
  --uid             uid         Set uid (` + "`uid`" + ` must > 0). Only root can use this
  --gid             gid         Set gid (` + "`gid`" + ` must > 0). Only root can use this
  --no-new-privs    bool        Do not allow getting higher privileges using exec. This disables things like sudo, ping, etc. Only root can set it to false. Require Linux >= 3.5
  --syscalls        syscalls    Apply a syscall filter. ` + "`syscalls`" + ` is basically a list of syscall names separated by ',' with an optional prefix '!'. If prefix '!' exists, it's a blacklist otherwise a whitelist. For full syntax of ` + "`syscalls`" + `, see --help-syscalls. Conflicts with --no-new-privs false
  --cgname          string      Specify cgroup name to use. The specified cgroup will be created on demand, and will not be deleted. If this option is not set, lrun will pick an unique cgroup name and destroy it upon exit.
  --hostname        string      Specify a new hostname
  --domainname      string      Specify a new domainname
  --config          path        Load option defaults from a YAML file
  --interval        seconds     Set sampling interval
  --debug                       Print debug messages
  --status                      Show realtime resource usage status
  --help                        Show this help
  --help-syscalls               Show full syntax of syscalls
  --version                     Show version information

Options that could be used multiple times:
  --bindfs          dest src    Bind ` + "`src`" + ` to ` + "`dest`" + `. This is performed before chroot. You should have read permission on ` + "`src`" + `
  --bindfs-ro       dest src    Like --bindfs but also make ` + "`dest`" + ` read-only
  --remount-ro      dest        Remount ` + "`dest`" + ` read-only. Only for prior --bindfs destinations
  --tmpfs           path bytes  Mount writable tmpfs to specified ` + "`path`" + ` to hide filesystem subtree. ` + "`size`" + ` is in bytes. If it is 0, mount read-only. This is performed after chroot. You should have write permission on ` + "`path`" + `
  --env             key value   Set environment variable before exec
  --cgroup-option   subsys k v  Apply cgroup setting before exec
  --fd              n           Do not close fd ` + "`n`" + `
  --cmd             cmd         Execute system command after tmpfs mounted. Only root can use this
  --group           gid         Set additional groups. Applied to lrun itself. Only root can use this

Return value:
  - If lrun is unable to execute specified command, non-zero is returned and nothing will be written to fd 3
  - Otherwise, lrun will return 0 and output time, memory usage, exit status of executed command to fd 3
  - If --pass-exitcode is set to true, lrun will just pass exit code of the child process

Option processing order:
  --hostname, --fd, --bindfs, --bindfs-ro, --chroot, (mount /proc), --tmpfs, --remount-dev, --chdir, --cmd, --umask, --gid, --uid, (rlimit options), --env, --nice, (cgroup limits), --syscalls

Default options:
  lrun --network true --basic-devices false --isolate-process true \
       --remount-dev false --reset-env false --interval 0.02 \
       --pass-exitcode false --no-new-privs true \
       --max-nprocess 2048 --max-nfile 256 \
       --max-rtprio 0 --nice 0
`

const syscallsHelp = `--syscalls FILTER_STRING
  Default action for unlisted syscalls is to return EPERM.

--syscalls !FILTER_STRING
  Default action for unlisted syscalls is to allow.

Format:
  FILTER_STRING  := SYSCALL_RULE | FILTER_STRING + ',' + SYSCALL_RULE
  SYSCALL_RULE   := SYSCALL_NAME + EXTRA_ARG_RULE + EXTRA_ACTION
  EXTRA_ARG_RULE := '' | '[' + ARG_RULES + ']'
  ARG_RULES      := ARG_RULE | ARG_RULES + ',' + ARG_RULE
  ARG_RULE       := ARG_NAME + ARG_OP1 + NUMBER | ARG_NAME + ARG_OP2 + NUMBER + '==' + NUMBER
  ARG_NAME       := 'a' | 'b' | 'c' | 'd' | 'e' | 'f'
  ARG_OP1        := '==' | '=' | '!=' | '!' | '>' | '<' | '>=' | '<='
  ARG_OP2        := '&'
  EXTRA_ACTION   := '' | ':k' | ':e' | ':a'

Notes:
  ARG_NAME:     'a' for the first arg, 'b' for the second, ...
  ARG_OP1:      '=' is short for '==', '!' is short for '!='
  ARG_OP2:      '&': bitwise and
  EXTRA_ACTION: 'k' is to kill, 'e' is to return EPERM, 'a' is to allow
  SYSCALL_NAME: syscall name or syscall number, ex: 'read', '0', ...
  NUMBER:       a decimal number containing only '0' to '9'

Examples:
  --syscalls 'read,write,open,exit'
    Only read, write, open, exit are allowed
  --syscalls '!write[a=2]'
    Disallow write to fd 2 (stderr)
  --syscalls '!sethostname:k'
    Whoever calls sethostname will get killed
  --syscalls '!clone[a&268435456==268435456]'
    Do not allow a new user namespace to be created (CLONE_NEWUSER = 0x10000000)
`

func printHelp(submodule string) {
	if submodule == "syscalls" {
		fmt.Fprint(os.Stderr, syscallsHelp)
		return
	}
	fmt.Fprint(os.Stderr, generalHelp)
}

func printVersion() {
	fmt.Printf("lrun %s\n", version)
}
