package forkexec

import (
	"sort"
	"syscall"
)

// prepareExec prepares execve parameters
func prepareExec(args, env []string) (*byte, []*byte, []*byte, error) {
	// make exec args0
	argv0, err := syscall.BytePtrFromString(args[0])
	if err != nil {
		return nil, nil, nil, err
	}
	// make exec args
	argv, err := syscall.SlicePtrFromStrings(args)
	if err != nil {
		return nil, nil, nil, err
	}
	// make env
	envv, err := syscall.SlicePtrFromStrings(env)
	if err != nil {
		return nil, nil, nil, err
	}
	return argv0, argv, envv, nil
}

// syscallStringFromString prepares *byte if string is not empty, otherwise nil
func syscallStringFromString(str string) (*byte, error) {
	if str != "" {
		return syscall.BytePtrFromString(str)
	}
	return nil, nil
}

// fdRange is a close_range span marked close-on-exec in the child.
type fdRange struct {
	First, Last uint
}

// prepareCloseRanges computes the descriptor gaps between stderr and the
// kept descriptors; everything inside a gap is marked close-on-exec.
func prepareCloseRanges(keep []int) []fdRange {
	kept := append([]int{}, keep...)
	sort.Ints(kept)

	var ret []fdRange
	prev := 2 // 0-2 always stay open
	for _, fd := range kept {
		if fd <= prev {
			continue
		}
		if fd > prev+1 {
			ret = append(ret, fdRange{First: uint(prev + 1), Last: uint(fd - 1)})
		}
		prev = fd
	}
	ret = append(ret, fdRange{First: uint(prev + 1), Last: uint(^uint32(0))})
	return ret
}

// shellArgv builds the execve parameters for one --cmd shell command.
func shellArgv(cmd string) (*byte, []*byte, error) {
	argv0, err := syscall.BytePtrFromString("/bin/sh")
	if err != nil {
		return nil, nil, err
	}
	argv, err := syscall.SlicePtrFromStrings([]string{"/bin/sh", "-c", cmd})
	if err != nil {
		return nil, nil, err
	}
	return argv0, argv, nil
}
