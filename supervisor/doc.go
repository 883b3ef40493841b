// Package supervisor owns the run: it creates the control group, launches
// the child through the launcher, samples accounting against the configured
// limits, emits the status record on the status channel and guarantees
// cleanup on every exit path.
package supervisor
