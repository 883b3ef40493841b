package cgroup

import (
	"fmt"
	"os"
	"path"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Ownership tells the cleanup path whether the group directory belongs to
// this supervisor.
type Ownership int

// A group is either created by the supervisor (destroy on exit) or named by
// the user via cgname (only killall on exit).
const (
	Owned Ownership = iota
	Borrowed
)

// Cgroup is the handle for one named group across all required subsystems.
type Cgroup struct {
	name      string
	ownership Ownership

	cpu     *controller
	cpuacct *controller
	memory  *controller
	devices *controller
	freezer *controller

	all []*controller

	// per-task write_bytes high-water marks for output accounting
	outputCount map[int]uint64
}

// Create ensures every required subsystem hierarchy is mounted and creates
// (or reuses) the group directory in each of them.
func Create(name string, ownership Ownership) (*Cgroup, error) {
	cg := &Cgroup{
		name:        name,
		ownership:   ownership,
		outputCount: make(map[int]uint64),
	}
	for _, c := range []struct {
		subsys string
		ctrl   **controller
	}{
		{CPU, &cg.cpu},
		{CPUAcct, &cg.cpuacct},
		{Memory, &cg.memory},
		{Devices, &cg.devices},
		{Freezer, &cg.freezer},
	} {
		if err := ensureSubsysMounted(c.subsys); err != nil {
			return nil, fmt.Errorf("cgroup: subsystem %s: %w", c.subsys, err)
		}
		p := path.Join(basePath, c.subsys, name)
		if err := EnsureDirExists(p); err != nil && !os.IsExist(err) {
			return nil, fmt.Errorf("cgroup: create %s: %w", p, err)
		}
		*c.ctrl = &controller{subsys: c.subsys, path: p}
		cg.all = append(cg.all, *c.ctrl)
	}
	return cg, nil
}

// ensureSubsysMounted mounts the subsystem hierarchy when it is absent.
func ensureSubsysMounted(subsys string) error {
	p := path.Join(basePath, subsys)
	if _, err := os.Stat(path.Join(p, cgroupTasks)); err == nil {
		return nil
	}
	if err := os.MkdirAll(p, dirPerm); err != nil {
		return err
	}
	return unix.Mount("cgroup", p, "cgroup", 0, subsys)
}

// Name returns the group name.
func (c *Cgroup) Name() string {
	return c.name
}

// Ownership returns whether the group is owned or borrowed.
func (c *Cgroup) Ownership() Ownership {
	return c.ownership
}

// SubsysPath returns a subsystem directory of the group; the first
// subsystem's directory doubles as the lock target serializing supervisors
// that share a name.
func (c *Cgroup) SubsysPath() string {
	return c.all[0].path
}

func (c *Cgroup) String() string {
	names := make([]string, 0, len(c.all))
	for _, s := range c.all {
		names = append(names, s.subsys)
	}
	return "cgroup(" + c.name + ")[" + strings.Join(names, ", ") + "]"
}

func findController(c *Cgroup, subsys string) *controller {
	for _, s := range c.all {
		if s.subsys == subsys {
			return s
		}
	}
	return nil
}

// Set writes a raw key/value pair into a subsystem control file.
func (c *Cgroup) Set(subsys, key, value string) error {
	s := findController(c, subsys)
	if s == nil {
		return fmt.Errorf("cgroup: unknown subsystem %q", subsys)
	}
	return s.WriteFile(key, []byte(value))
}

// IsSubsystem reports whether name is one of the group's subsystems.
func IsSubsystem(name string) bool {
	for _, s := range subsystems {
		if s == name {
			return true
		}
	}
	return false
}

// Device whitelist entries for LimitDevices.
var deviceAllows = []string{
	"c 1:3 rwm",   // null
	"c 1:5 rwm",   // zero
	"c 1:7 rwm",   // full
	"c 1:8 rwm",   // random
	"c 1:9 rwm",   // urandom
	"c 5:0 rwm",   // tty
	"c 5:2 rwm",   // ptmx
	"c 136:* rwm", // pts
}

// LimitDevices denies all device access and allows only the basic nodes.
func (c *Cgroup) LimitDevices() error {
	if err := c.devices.WriteFile("devices.deny", []byte("a")); err != nil {
		return err
	}
	for _, e := range deviceAllows {
		if err := c.devices.WriteFile("devices.allow", []byte(e)); err != nil {
			return err
		}
	}
	return nil
}

// SetMemoryLimit applies the memory ceiling: limit_in_bytes, the matching
// memsw limit when the kernel provides it, swap disabled, OOM killer kept
// enabled during setup.
func (c *Cgroup) SetMemoryLimit(bytes uint64) error {
	if err := c.memory.WriteUint("memory.limit_in_bytes", bytes); err != nil {
		return err
	}
	if c.memory.Exists("memory.memsw.limit_in_bytes") {
		if err := c.memory.WriteUint("memory.memsw.limit_in_bytes", bytes); err != nil {
			return err
		}
	}
	// best effort, some kernels lack these knobs
	c.memory.WriteFile("memory.swappiness", []byte("0"))
	c.memory.WriteFile("memory.oom_control", []byte("0"))
	return nil
}

// ResetUsages zeroes the cpu and memory peak counters and the output
// accounting state.
func (c *Cgroup) ResetUsages() error {
	if err := c.cpuacct.WriteUint("cpuacct.usage", 0); err != nil {
		return err
	}
	if err := c.memory.WriteUint("memory.max_usage_in_bytes", 0); err != nil {
		return err
	}
	c.outputCount = make(map[int]uint64)
	return nil
}

// CPUUsage reads cpuacct.usage, in seconds.
func (c *Cgroup) CPUUsage() (float64, error) {
	ns, err := c.cpuacct.ReadUint("cpuacct.usage")
	if err != nil {
		return 0, err
	}
	return float64(ns) / float64(time.Second), nil
}

// MemoryCurrent reads memory.usage_in_bytes.
func (c *Cgroup) MemoryCurrent() (uint64, error) {
	return c.memory.ReadUint("memory.usage_in_bytes")
}

// MemoryPeak reads memory.max_usage_in_bytes.
func (c *Cgroup) MemoryPeak() (uint64, error) {
	return c.memory.ReadUint("memory.max_usage_in_bytes")
}

// AddProcess attaches a process to every subsystem of the group.
func (c *Cgroup) AddProcess(pid int) error {
	for _, s := range c.all {
		if err := s.AddTask(pid); err != nil {
			return err
		}
	}
	return nil
}

// Tasks returns the union of the task sets across subsystems.
func (c *Cgroup) Tasks() []int {
	seen := make(map[int]struct{})
	var ret []int
	for _, s := range c.all {
		pids, err := s.Tasks()
		if err != nil {
			continue
		}
		for _, pid := range pids {
			if _, ok := seen[pid]; ok {
				continue
			}
			seen[pid] = struct{}{}
			ret = append(ret, pid)
		}
	}
	return ret
}

// Empty reports whether no task remains in any subsystem.
func (c *Cgroup) Empty() bool {
	return len(c.Tasks()) == 0
}

// KillAll terminates every task in the group. The freezer stops the tasks
// first so a fork bomb cannot outrun the signal loop.
func (c *Cgroup) KillAll() error {
	for !c.Empty() {
		c.freeze()
		for _, pid := range c.Tasks() {
			syscall.Kill(pid, syscall.SIGKILL)
		}
		c.thaw()
		// killed tasks leave the group once reaped by their parent
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (c *Cgroup) freeze() {
	if err := c.freezer.WriteFile("freezer.state", []byte("FROZEN")); err != nil {
		return
	}
	// FREEZING → FROZEN may take a moment; bounded wait
	for i := 0; i < 100; i++ {
		b, err := c.freezer.ReadFile("freezer.state")
		if err != nil || strings.TrimSpace(string(b)) == "FROZEN" {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func (c *Cgroup) thaw() {
	c.freezer.WriteFile("freezer.state", []byte("THAWED"))
}

// Destroy kills every task and removes the group directory in every
// subsystem. Idempotent.
func (c *Cgroup) Destroy() error {
	if err := c.KillAll(); err != nil {
		return err
	}
	var err1 error
	for _, s := range c.all {
		if err := remove(s.path); err != nil {
			err1 = err
		}
	}
	return err1
}

// Cleanup branches on the ownership tag: owned groups are destroyed,
// borrowed groups only emptied.
func (c *Cgroup) Cleanup() error {
	if c.ownership == Owned {
		return c.Destroy()
	}
	return c.KillAll()
}
