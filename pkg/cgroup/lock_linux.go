package cgroup

import (
	"os"

	"golang.org/x/sys/unix"
)

// FileLock serializes supervisors sharing a cgroup name via flock on the
// group's subsystem directory.
type FileLock struct {
	f *os.File
}

// NewFileLock opens the lock target.
func NewFileLock(path string) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return &FileLock{f: f}, nil
}

// Lock blocks until the exclusive lock is held.
func (l *FileLock) Lock() error {
	for {
		err := unix.Flock(int(l.f.Fd()), unix.LOCK_EX)
		if err != unix.EINTR {
			return err
		}
	}
}

// Unlock releases the lock and closes the target.
func (l *FileLock) Unlock() error {
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}
