// Package procfs reads per-process information from /proc.
package procfs

// ProcPath is the procfs mount point. Variable so tests can point it at a
// fixture tree.
var ProcPath = "/proc"
