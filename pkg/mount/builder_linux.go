package mount

import (
	"fmt"
	"os"
	"path"

	"golang.org/x/sys/unix"
)

const procFlags = unix.MS_NOSUID | unix.MS_NODEV | unix.MS_NOEXEC

// Basic device nodes recreated under a fresh /dev.
var devNodes = []Node{
	{Path: "/dev/null", Mode: unix.S_IFCHR | 0666, Dev: unix.Mkdev(1, 3)},
	{Path: "/dev/zero", Mode: unix.S_IFCHR | 0666, Dev: unix.Mkdev(1, 5)},
	{Path: "/dev/full", Mode: unix.S_IFCHR | 0666, Dev: unix.Mkdev(1, 7)},
	{Path: "/dev/random", Mode: unix.S_IFCHR | 0666, Dev: unix.Mkdev(1, 8)},
	{Path: "/dev/urandom", Mode: unix.S_IFCHR | 0666, Dev: unix.Mkdev(1, 9)},
	{Path: "/dev/tty", Mode: unix.S_IFCHR | 0666, Dev: unix.Mkdev(5, 0)},
}

// Bind is a single bindfs entry in command-line order.
type Bind struct {
	Target, Source string
}

// Remount is an accumulated remount flag set for a bind target.
type Remount struct {
	Target string
	Flags  uintptr
}

// Tmpfs is a tmpfs entry; Size 0 mounts it read-only.
type Tmpfs struct {
	Target string
	Size   uint64
}

// Builder accumulates the filesystem configuration and emits the plan in
// its fixed execution order: binds, remounts, chroot (with a fresh proc),
// tmpfs, /dev reconstruction, chdir.
type Builder struct {
	Binds      []Bind
	Remounts   []Remount
	Chroot     string
	Tmpfs      []Tmpfs
	RemountDev bool
	Chdir      string
}

// NewBuilder creates an empty plan builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithBind appends a bind mount.
func (b *Builder) WithBind(target, source string) *Builder {
	b.Binds = append(b.Binds, Bind{Target: target, Source: source})
	return b
}

// WithRemount merges flags into the remount entry for target.
func (b *Builder) WithRemount(target string, flags uintptr) *Builder {
	for i := range b.Remounts {
		if b.Remounts[i].Target == target {
			b.Remounts[i].Flags |= flags
			return b
		}
	}
	b.Remounts = append(b.Remounts, Remount{Target: target, Flags: flags})
	return b
}

// WithChroot sets the new root.
func (b *Builder) WithChroot(root string) *Builder {
	b.Chroot = root
	return b
}

// WithTmpfs appends a tmpfs mount.
func (b *Builder) WithTmpfs(target string, size uint64) *Builder {
	b.Tmpfs = append(b.Tmpfs, Tmpfs{Target: target, Size: size})
	return b
}

// WithRemountDev reconstructs /dev with only the basic nodes.
func (b *Builder) WithRemountDev() *Builder {
	b.RemountDev = true
	return b
}

// WithChdir sets the final working directory.
func (b *Builder) WithChdir(dir string) *Builder {
	b.Chdir = dir
	return b
}

// Mounts expands the builder into the ordered mount list (without the
// chroot / chdir / mknod steps); useful for logging.
func (b *Builder) Mounts() []Mount {
	var ret []Mount
	for _, bd := range b.Binds {
		flags := uintptr(unix.MS_BIND)
		var nod bool
		if st, err := os.Stat(bd.Source); err == nil && st.IsDir() {
			flags |= unix.MS_REC
		} else {
			nod = true
		}
		ret = append(ret, Mount{
			Source:  bd.Source,
			Target:  bd.Target,
			Flags:   flags,
			MakeNod: nod,
		})
	}
	for _, rm := range b.Remounts {
		ret = append(ret, Mount{
			Target: rm.Target,
			Flags:  unix.MS_BIND | unix.MS_REMOUNT | rm.Flags,
		})
	}
	if b.Chroot != "" {
		ret = append(ret, Mount{
			Source: "proc",
			Target: path.Join(b.Chroot, "proc"),
			FsType: "proc",
			Flags:  procFlags,
		})
	}
	for _, tm := range b.Tmpfs {
		m := Mount{
			Source: "tmpfs",
			Target: tm.Target,
			FsType: "tmpfs",
			Flags:  unix.MS_NOSUID,
		}
		if tm.Size > 0 {
			m.Data = fmt.Sprintf("size=%d", tm.Size)
		} else {
			m.Flags |= unix.MS_RDONLY
		}
		ret = append(ret, m)
	}
	if b.RemountDev {
		ret = append(ret, Mount{
			Source: "tmpfs",
			Target: "/dev",
			FsType: "tmpfs",
			Flags:  unix.MS_NOSUID,
			Data:   "mode=755",
		})
	}
	return ret
}

// Build marshals the full plan into child-executable syscall parameters.
func (b *Builder) Build() ([]SyscallParams, error) {
	var ret []SyscallParams

	add := func(p *SyscallParams, err error) error {
		if err != nil {
			return err
		}
		ret = append(ret, *p)
		return nil
	}

	mounts := b.Mounts()
	// split the mount list around the chroot step: binds and remounts
	// happen before chroot, tmpfs and /dev after
	nBefore := len(b.Binds) + len(b.Remounts)
	if b.Chroot != "" {
		nBefore++ // the fresh proc is mounted before chroot, inside the new root
	}
	for i, m := range mounts {
		if i == nBefore && b.Chroot != "" {
			if err := add(chrootParams(b.Chroot)); err != nil {
				return nil, err
			}
			if err := add(chdirParams("/")); err != nil {
				return nil, err
			}
		}
		if err := add(m.ToSyscall()); err != nil {
			return nil, err
		}
	}
	if b.Chroot != "" && len(mounts) == nBefore {
		if err := add(chrootParams(b.Chroot)); err != nil {
			return nil, err
		}
		if err := add(chdirParams("/")); err != nil {
			return nil, err
		}
	}
	if b.RemountDev {
		for _, n := range devNodes {
			if err := add(n.ToSyscall()); err != nil {
				return nil, err
			}
		}
	}
	if b.Chdir != "" {
		if err := add(chdirParams(b.Chdir)); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (b Builder) String() string {
	s := "mounts: "
	for i, m := range b.Mounts() {
		if i > 0 {
			s += ", "
		}
		s += m.String()
	}
	if b.Chroot != "" {
		s += ", chroot[" + b.Chroot + "]"
	}
	if b.Chdir != "" {
		s += ", chdir[" + b.Chdir + "]"
	}
	return s
}
