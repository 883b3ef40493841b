package cgroup

import "github.com/acmoj/lrun/pkg/procfs"

// UpdateOutputCount refreshes the per-task write_bytes high-water marks.
// Tasks that exited keep their last observed value so the total survives
// short-lived writers. Read failures are skipped; the limit is advisory.
func (c *Cgroup) UpdateOutputCount() {
	for _, pid := range c.Tasks() {
		wb, err := procfs.WriteBytes(pid)
		if err != nil {
			continue
		}
		if wb > c.outputCount[pid] {
			c.outputCount[pid] = wb
		}
	}
}

// OutputUsage returns the accumulated bytes written by the group's tasks.
func (c *Cgroup) OutputUsage() uint64 {
	var total uint64
	for _, v := range c.outputCount {
		total += v
	}
	return total
}
