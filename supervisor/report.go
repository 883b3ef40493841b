package supervisor

import (
	"fmt"
	"io"
	"syscall"
)

// Exceed tags which limit terminated the run.
type Exceed int

// Exceeded limit tags, in the order the loop samples them.
const (
	ExceedNone Exceed = iota
	ExceedCPUTime
	ExceedRealTime
	ExceedMemory
	ExceedOutput
)

var exceedString = []string{"none", "CPU_TIME", "REAL_TIME", "MEMORY", "OUTPUT"}

func (e Exceed) String() string {
	if int(e) < len(exceedString) {
		return exceedString[e]
	}
	return exceedString[0]
}

// Report is the run record emitted on the status channel.
type Report struct {
	Memory   uint64
	CPUTime  float64
	RealTime float64
	Signaled bool
	ExitCode int
	TermSig  int
	Exceed   Exceed
}

// WriteTo writes the keyed record in its fixed order and format.
func (r *Report) WriteTo(w io.Writer) error {
	b2i := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	_, err := fmt.Fprintf(w,
		"MEMORY   %d\n"+
			"CPUTIME  %.3f\n"+
			"REALTIME %.3f\n"+
			"SIGNALED %d\n"+
			"EXITCODE %d\n"+
			"TERMSIG  %d\n"+
			"EXCEED   %s\n",
		r.Memory, r.CPUTime, r.RealTime,
		b2i(r.Signaled), r.ExitCode, r.TermSig, r.Exceed)
	return err
}

// collectReport resolves the raced samples into the final record. A usage
// at or above its limit is clamped to the limit and sets the matching tag;
// a reaped SIGXCPU / SIGXFSZ sets CPU_TIME / OUTPUT. The checks run in the
// order memory, cpu time, SIGXFSZ, real time and a later match replaces an
// earlier tag; when none matches, the loop's tag is kept.
func collectReport(stat syscall.WaitStatus, exceed Exceed,
	memory uint64, cpuTime, realTime float64, l Limits) Report {

	if l.Memory > 0 && memory >= l.Memory {
		memory = l.Memory
		exceed = ExceedMemory
	}

	if (stat.Signaled() && stat.Signal() == syscall.SIGXCPU) ||
		(l.CPUTime > 0 && cpuTime >= l.CPUTime) {
		if l.CPUTime > 0 {
			cpuTime = l.CPUTime
		}
		exceed = ExceedCPUTime
	}

	if stat.Signaled() && stat.Signal() == syscall.SIGXFSZ {
		exceed = ExceedOutput
	}

	if l.RealTime > 0 && realTime >= l.RealTime {
		realTime = l.RealTime
		exceed = ExceedRealTime
	}

	return Report{
		Memory:   memory,
		CPUTime:  cpuTime,
		RealTime: realTime,
		Signaled: stat.Signaled(),
		ExitCode: int(stat>>8) & 0xff,
		TermSig:  int(stat) & 0x7f,
		Exceed:   exceed,
	}
}
