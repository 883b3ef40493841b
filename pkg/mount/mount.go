// Package mount builds the filesystem plan applied inside the child's mount
// namespace: bind mounts, read-only remounts, chroot with a fresh proc,
// tmpfs mounts, /dev reconstruction and the final chdir. The plan is
// pre-marshaled into raw syscall parameters so the child can execute it
// between clone and exec without allocating.
package mount

import (
	"fmt"
	"syscall"
)

// Op selects the syscall a step performs in the child.
type Op int

// Step kinds, executed in plan order.
const (
	OpMount Op = iota + 1
	OpChroot
	OpChdir
	OpMknod
)

// Mount defines one mount syscall of the plan.
type Mount struct {
	Source, Target, FsType, Data string
	Flags                        uintptr
	// MakeNod creates the target as a file instead of a directory,
	// for bind-mounting single files
	MakeNod bool
}

// Node defines a device node created by mknod during /dev reconstruction.
type Node struct {
	Path string
	Mode uint32
	Dev  uint64
}

// SyscallParams is a plan step marshaled for execution between clone and
// exec. All strings are NUL-terminated C pointers.
type SyscallParams struct {
	Op                           Op
	Source, Target, FsType, Data *byte
	Flags                        uintptr
	// Prefixes holds every path component of Target so the child can
	// mkdir its way down; for MakeNod the last component is created as
	// a file node
	Prefixes []*byte
	MakeNod  bool
	Mode     uint32
	Dev      uint64
}

// ToSyscall converts Mount to SyscallParams.
func (m *Mount) ToSyscall() (*SyscallParams, error) {
	var data *byte
	source, err := syscall.BytePtrFromString(m.Source)
	if err != nil {
		return nil, err
	}
	target, err := syscall.BytePtrFromString(m.Target)
	if err != nil {
		return nil, err
	}
	fsType, err := syscall.BytePtrFromString(m.FsType)
	if err != nil {
		return nil, err
	}
	if m.Data != "" {
		data, err = syscall.BytePtrFromString(m.Data)
		if err != nil {
			return nil, err
		}
	}
	prefixes, err := arrayPtrFromStrings(pathPrefix(m.Target))
	if err != nil {
		return nil, err
	}
	return &SyscallParams{
		Op:       OpMount,
		Source:   source,
		Target:   target,
		FsType:   fsType,
		Flags:    m.Flags,
		Data:     data,
		Prefixes: prefixes,
		MakeNod:  m.MakeNod,
	}, nil
}

// ToSyscall converts Node to SyscallParams.
func (n *Node) ToSyscall() (*SyscallParams, error) {
	target, err := syscall.BytePtrFromString(n.Path)
	if err != nil {
		return nil, err
	}
	return &SyscallParams{
		Op:     OpMknod,
		Target: target,
		Mode:   n.Mode,
		Dev:    n.Dev,
	}, nil
}

func chrootParams(path string) (*SyscallParams, error) {
	target, err := syscall.BytePtrFromString(path)
	if err != nil {
		return nil, err
	}
	return &SyscallParams{Op: OpChroot, Target: target}, nil
}

func chdirParams(path string) (*SyscallParams, error) {
	target, err := syscall.BytePtrFromString(path)
	if err != nil {
		return nil, err
	}
	return &SyscallParams{Op: OpChdir, Target: target}, nil
}

// pathPrefix gets all components from path
func pathPrefix(path string) []string {
	ret := make([]string, 0)
	for i := 1; i < len(path); i++ {
		if path[i] == '/' {
			ret = append(ret, path[:i])
		}
	}
	ret = append(ret, path)
	return ret
}

// arrayPtrFromStrings converts strings to c style strings
func arrayPtrFromStrings(strs []string) ([]*byte, error) {
	bytes := make([]*byte, 0, len(strs))
	for _, s := range strs {
		b, err := syscall.BytePtrFromString(s)
		if err != nil {
			return nil, err
		}
		bytes = append(bytes, b)
	}
	return bytes, nil
}

func (m Mount) String() string {
	switch {
	case m.Flags&syscall.MS_BIND == syscall.MS_BIND && m.Flags&syscall.MS_REMOUNT == 0:
		return fmt.Sprintf("bind[%s:%s]", m.Source, m.Target)
	case m.Flags&syscall.MS_REMOUNT == syscall.MS_REMOUNT:
		flag := "rw"
		if m.Flags&syscall.MS_RDONLY == syscall.MS_RDONLY {
			flag = "ro"
		}
		return fmt.Sprintf("remount[%s:%s]", m.Target, flag)
	case m.FsType == "tmpfs":
		return fmt.Sprintf("tmpfs[%s,%s]", m.Target, m.Data)
	case m.FsType == "proc":
		return fmt.Sprintf("proc[%s]", m.Target)
	default:
		return fmt.Sprintf("mount[%s,%s:%s:%x,%s]", m.FsType, m.Source, m.Target, m.Flags, m.Data)
	}
}
