package cgroup

// basePath is the cgroup v1 filesystem mount point. Variable so tests can
// run against a fixture tree.
var basePath = "/sys/fs/cgroup"

// Subsystems the supervisor requires.
const (
	CPU     = "cpu"
	CPUAcct = "cpuacct"
	Memory  = "memory"
	Devices = "devices"
	Freezer = "freezer"
)

var subsystems = []string{CPU, CPUAcct, Memory, Devices, Freezer}

const (
	cgroupTasks = "tasks"

	filePerm = 0644
	dirPerm  = 0755
)
