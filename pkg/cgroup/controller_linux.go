package cgroup

import (
	"errors"
	"os"
	"path"
	"strconv"
	"strings"
)

// controller is the accessor for a single subsystem directory of the group.
type controller struct {
	subsys string
	path   string
}

// ErrNotInitialized is returned when reading from a controller that was
// never created.
var ErrNotInitialized = errors.New("cgroup was not initialized")

// WriteUint writes uint64 into the given control file.
func (c *controller) WriteUint(filename string, i uint64) error {
	return c.WriteFile(filename, []byte(strconv.FormatUint(i, 10)))
}

// ReadUint reads uint64 from the given control file.
func (c *controller) ReadUint(filename string) (uint64, error) {
	b, err := c.ReadFile(filename)
	if err != nil {
		return 0, err
	}
	s, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, err
	}
	return s, nil
}

// WriteFile writes a control file.
func (c *controller) WriteFile(name string, content []byte) error {
	if c == nil || c.path == "" {
		return ErrNotInitialized
	}
	return writeFile(path.Join(c.path, name), content, filePerm)
}

// ReadFile reads a control file.
func (c *controller) ReadFile(name string) ([]byte, error) {
	if c == nil || c.path == "" {
		return nil, ErrNotInitialized
	}
	return readFile(path.Join(c.path, name))
}

// Exists reports whether a control file is present, e.g. the optional
// memory.memsw.* files.
func (c *controller) Exists(name string) bool {
	if c == nil || c.path == "" {
		return false
	}
	_, err := os.Stat(path.Join(c.path, name))
	return err == nil
}

// AddTask attaches a thread to the subsystem.
func (c *controller) AddTask(pid int) error {
	return c.WriteUint(cgroupTasks, uint64(pid))
}

// Tasks lists the threads attached to the subsystem.
func (c *controller) Tasks() ([]int, error) {
	b, err := c.ReadFile(cgroupTasks)
	if err != nil {
		return nil, err
	}
	return parsePids(b), nil
}
