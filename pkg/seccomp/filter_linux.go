package seccomp

import (
	"fmt"
	"syscall"
	"unsafe"
)

// Filter is a compiled BPF seccomp program.
type Filter []syscall.SockFilter

// SockFprog converts Filter to SockFprog for the seccomp syscall.
func (f Filter) SockFprog() *syscall.SockFprog {
	b := []syscall.SockFilter(f)
	return &syscall.SockFprog{
		Len:    uint16(len(b)),
		Filter: &b[0],
	}
}

// filterFromBytes decodes a kernel-format BPF program (8 bytes per
// instruction, native endianness) as exported by libseccomp.
func filterFromBytes(b []byte) (Filter, error) {
	if len(b) == 0 || len(b)%8 != 0 {
		return nil, fmt.Errorf("seccomp: bad BPF program length %d", len(b))
	}
	n := len(b) / 8
	src := unsafe.Slice((*syscall.SockFilter)(unsafe.Pointer(&b[0])), n)
	f := make(Filter, n)
	copy(f, src)
	return f, nil
}
