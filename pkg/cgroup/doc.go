// Package cgroup creates, configures and destroys the cgroup v1 control
// groups that account and limit the sandboxed process tree. A group spans
// the cpu, cpuacct, memory, devices and freezer subsystems; the freezer is
// used to make killall reliable against fork storms.
package cgroup
