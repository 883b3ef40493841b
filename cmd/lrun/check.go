package main

import (
	"fmt"
	"os"
	"path"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/acmoj/lrun/pkg/seccomp"
)

// followBinds rewrites an absolute path through the bind list so permission
// checks look at what the child will actually reach.
func followBinds(binds []bindEntry, p string) string {
	if !path.IsAbs(p) {
		return p
	}
	result := path.Clean(p)
	for i := len(binds) - 1; i >= 0; i-- {
		prefix := binds[i].Dest + "/"
		if strings.HasPrefix(result, prefix) {
			// once is enough, the bind sources already followed previous binds
			result = binds[i].Src + result[len(prefix)-1:]
			break
		}
	}
	return result
}

func accessModeString(mode uint32) string {
	var s string
	if mode&unix.R_OK != 0 {
		s += "r"
	}
	if mode&unix.W_OK != 0 {
		s += "w"
	}
	if mode&unix.X_OK != 0 {
		s += "x"
	}
	return s
}

func checkPathPermission(p string, mode uint32, errs *[]string) {
	if !path.IsAbs(p) {
		*errs = append(*errs,
			"Relative paths are forbidden for non-root users.\n"+
				"Please change: "+p)
		return
	}
	if st, err := os.Stat(p); err == nil && st.IsDir() {
		mode |= unix.X_OK
	}
	if err := unix.Access(p, mode); err != nil {
		*errs = append(*errs,
			"You do not have `"+accessModeString(mode)+"` permission on "+p)
	}
}

// checkConfig collects every configuration error so the user sees the full
// set at once.
func checkConfig(o *options) []string {
	isRoot := os.Getuid() == 0
	var errs []string

	if o.uid == 0 {
		errs = append(errs,
			"For security reason, running commands with uid = 0 is not allowed.\n"+
				"Please specify a user ID using `--uid`.")
	} else if !isRoot && o.uid != int64(os.Getuid()) {
		errs = append(errs,
			"For security reason, setting uid to other user requires root.")
	}

	if o.gid == 0 {
		errs = append(errs,
			"For security reason, running commands with gid = 0 is not allowed.\n"+
				"Please specify a group ID using `--gid`.")
	} else if !isRoot && o.gid != int64(os.Getgid()) {
		errs = append(errs,
			"For security reason, setting gid to other group requires root.")
	}

	if len(o.command) == 0 {
		errs = append(errs,
			"command_args can not be empty.\n"+
				"Use `--help` to see full options.")
	}

	if len(o.utsExtra) > 0 {
		errs = append(errs, fmt.Sprintf(
			"Option `--%s` requires an out-of-tree kernel module which is not loaded.",
			o.utsExtra[0]))
	}

	if !isRoot {
		if len(o.commands) > 0 {
			errs = append(errs, "For security reason, `--cmd` requires root.")
		}
		if len(o.groups) > 0 {
			errs = append(errs, "For security reason, `--group` requires root.")
		}

		// require absolute paths and read permission for everything
		// the child will reach
		var binds []bindEntry
		for _, b := range o.binds {
			checkPathPermission(followBinds(binds, b.Src), unix.R_OK, &errs)
			binds = append(binds, bindEntry{
				Dest: path.Clean(b.Dest),
				Src:  followBinds(binds, path.Clean(b.Src)),
			})
		}
		if o.chroot != "" {
			checkPathPermission(followBinds(binds, o.chroot), unix.R_OK, &errs)
		}
		if o.chdir != "" {
			checkPathPermission(followBinds(binds, path.Join(o.chroot, o.chdir)), unix.R_OK, &errs)
		}

		// something like `--remount-ro /` affects the outside world
		for _, rm := range o.remounts {
			if !o.bindDest[rm.Dest] {
				errs = append(errs,
					"For security reason, `--remount-ro A` is only allowed "+
						"if there is a `--bindfs A B`.")
			}
		}

		if !o.noNewPrivs {
			errs = append(errs,
				"For security reason, `--no-new-privs false` is forbidden "+
					"for non-root users.")
		}

		if o.nice < 0 {
			errs = append(errs, "Non-root users cannot set a negative value of `--nice`")
		}
	}

	if o.syscallsSet {
		if _, err := seccomp.Parse(o.syscalls); err != nil {
			errs = append(errs, fmt.Sprintf("Bad syscall filter: %v", err))
		}
		if !o.noNewPrivs {
			errs = append(errs, "`--syscalls` conflicts with `--no-new-privs false`.")
		}
	}

	return errs
}

// checkEnvironment verifies the supervisor runs with root privileges and
// normalizes its identity; --group values apply to the supervisor itself.
func checkEnvironment(o *options) error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("lrun: root required. (current euid = %d, uid = %d)",
			os.Geteuid(), os.Getuid())
	}
	if err := unix.Setuid(0); err != nil {
		return fmt.Errorf("lrun: setuid(0) failed: %w", err)
	}
	if err := unix.Setgid(0); err != nil {
		fmt.Fprintln(os.Stderr, "setgid(0) failed")
	}
	groups := make([]int, 0, len(o.groups))
	for _, g := range o.groups {
		groups = append(groups, int(g))
	}
	if err := unix.Setgroups(groups); err != nil {
		fmt.Fprintln(os.Stderr, "setgroups failed")
	}
	return nil
}
