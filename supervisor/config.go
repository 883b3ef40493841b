package supervisor

import (
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/acmoj/lrun/pkg/mount"
	"github.com/acmoj/lrun/pkg/rlimit"
)

// DefaultInterval is the sampling period of the monitoring loop.
const DefaultInterval = 20 * time.Millisecond

// Limits are the sampled resource ceilings; zero values disable a check.
type Limits struct {
	CPUTime  float64 // seconds
	RealTime float64 // seconds
	Memory   uint64  // bytes
	Output   uint64  // bytes
	Interval time.Duration
}

// CgroupOption is one raw --cgroup-option entry applied during setup.
type CgroupOption struct {
	Subsys, Key, Value string
}

// Config is the validated run configuration handed from the command line
// walker to the supervisor. It is assembled once and passed by reference;
// there is no global state.
type Config struct {
	// resolved command and final environment
	Command []string
	Env     []string

	Limits  Limits
	RLimits rlimit.RLimits

	// accumulated CLONE_NEW* namespace flags
	CloneFlags uintptr

	// marshaled filesystem plan
	Steps []mount.SyscallParams

	// uts
	HostName, DomainName string

	// identity
	UID    uint32
	GID    uint32
	Groups []uint32 // supplementary groups applied to the supervisor itself
	Umask  uint32
	Nice   int

	KeepFds  []int
	Commands []string

	NoNewPrivs bool
	Seccomp    *syscall.SockFprog

	// cgroup
	CgroupName    string // empty picks a pid-derived name and owns the group
	BasicDevices  bool
	CgroupOptions []CgroupOption

	PassExitcode bool
	Status       bool // log a resource usage line every interval

	Log *zap.Logger
}

// Interval returns the configured sampling interval or the default.
func (c *Config) Interval() time.Duration {
	if c.Limits.Interval > 0 {
		return c.Limits.Interval
	}
	return DefaultInterval
}
