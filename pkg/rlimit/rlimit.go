// Package rlimit translates the configured limit set into setrlimit
// parameters applied to the child before exec.
package rlimit

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/docker/go-units"
)

// Default ceilings applied to every child.
const (
	DefaultNoFile = 256
	DefaultNProc  = 2048
)

// RLimits is the set of POSIX resource limits for the child process.
// NoFile, NProc, RTPrio and Core are always applied; CPU, FileSize and
// Stack are applied when positive, Nice when HasNice is set.
type RLimits struct {
	CPU      uint64 // in s, hard backstop for the cgroup cpu-time limit
	FileSize uint64 // in bytes
	Stack    uint64 // in bytes
	NoFile   uint64
	NProc    uint64
	RTPrio   uint64
	Core     uint64
	Nice     uint64 // RLIMIT_NICE ceiling, only via the deprecated min-nice alias
	HasNice  bool
}

// RLimit is a single resource limit applied by prlimit64.
type RLimit struct {
	// Res is the resource type (e.g. syscall.RLIMIT_CPU)
	Res int
	// Rlim is the limit applied to that resource
	Rlim syscall.Rlimit
}

// New returns the default limit set.
func New() RLimits {
	return RLimits{
		NoFile: DefaultNoFile,
		NProc:  DefaultNProc,
		RTPrio: 0,
		Core:   0,
	}
}

func getRlimit(cur, max uint64) syscall.Rlimit {
	return syscall.Rlimit{Cur: cur, Max: max}
}

// PrepareRLimit creates the rlimit list for the child launcher.
func (r *RLimits) PrepareRLimit() []RLimit {
	ret := []RLimit{
		{Res: syscall.RLIMIT_NOFILE, Rlim: getRlimit(r.NoFile, r.NoFile)},
		{Res: unixRlimitNProc, Rlim: getRlimit(r.NProc, r.NProc)},
		{Res: unixRlimitRTPrio, Rlim: getRlimit(r.RTPrio, r.RTPrio)},
		{Res: syscall.RLIMIT_CORE, Rlim: getRlimit(r.Core, r.Core)},
	}
	if r.CPU > 0 {
		ret = append(ret, RLimit{
			Res:  syscall.RLIMIT_CPU,
			Rlim: getRlimit(r.CPU, r.CPU),
		})
	}
	if r.FileSize > 0 {
		ret = append(ret, RLimit{
			Res:  syscall.RLIMIT_FSIZE,
			Rlim: getRlimit(r.FileSize, r.FileSize),
		})
	}
	if r.Stack > 0 {
		ret = append(ret, RLimit{
			Res:  syscall.RLIMIT_STACK,
			Rlim: getRlimit(r.Stack, r.Stack),
		})
	}
	if r.HasNice {
		ret = append(ret, RLimit{
			Res:  unixRlimitNice,
			Rlim: getRlimit(r.Nice, r.Nice),
		})
	}
	return ret
}

func (r RLimit) String() string {
	switch r.Res {
	case syscall.RLIMIT_CPU:
		return fmt.Sprintf("CPU[%d s:%d s]", r.Rlim.Cur, r.Rlim.Max)
	case syscall.RLIMIT_NOFILE:
		return fmt.Sprintf("NoFile[%d:%d]", r.Rlim.Cur, r.Rlim.Max)
	case unixRlimitNProc:
		return fmt.Sprintf("NProc[%d:%d]", r.Rlim.Cur, r.Rlim.Max)
	case unixRlimitRTPrio:
		return fmt.Sprintf("RTPrio[%d:%d]", r.Rlim.Cur, r.Rlim.Max)
	case unixRlimitNice:
		return fmt.Sprintf("Nice[%d:%d]", r.Rlim.Cur, r.Rlim.Max)
	}
	t := ""
	switch r.Res {
	case syscall.RLIMIT_FSIZE:
		t = "File"
	case syscall.RLIMIT_STACK:
		t = "Stack"
	case syscall.RLIMIT_CORE:
		t = "Core"
	}
	return fmt.Sprintf("%s[%s:%s]", t,
		units.BytesSize(float64(r.Rlim.Cur)), units.BytesSize(float64(r.Rlim.Max)))
}

func (r RLimits) String() string {
	var sb strings.Builder
	sb.WriteString("RLimits[")
	for i, rl := range r.PrepareRLimit() {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(rl.String())
	}
	sb.WriteString("]")
	return sb.String()
}
