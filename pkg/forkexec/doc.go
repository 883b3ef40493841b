// Package forkexec clones the sandboxed child into its namespaces and
// applies the per-run configuration (filesystem plan, credentials, rlimits,
// nice, no_new_privs, seccomp) in a fixed order before exec.
package forkexec
