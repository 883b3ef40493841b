package supervisor

import (
	"strings"
	"syscall"
	"testing"
)

// wait status constructors matching the kernel encoding
func exited(code int) syscall.WaitStatus {
	return syscall.WaitStatus(code << 8)
}

func signaled(sig syscall.Signal) syscall.WaitStatus {
	return syscall.WaitStatus(sig)
}

func TestReportFormat(t *testing.T) {
	r := Report{
		Memory:   1048576,
		CPUTime:  0.512,
		RealTime: 1.25,
		Signaled: true,
		ExitCode: 0,
		TermSig:  9,
		Exceed:   ExceedMemory,
	}
	var sb strings.Builder
	if err := r.WriteTo(&sb); err != nil {
		t.Fatal(err)
	}
	want := "MEMORY   1048576\n" +
		"CPUTIME  0.512\n" +
		"REALTIME 1.250\n" +
		"SIGNALED 1\n" +
		"EXITCODE 0\n" +
		"TERMSIG  9\n" +
		"EXCEED   MEMORY\n"
	if sb.String() != want {
		t.Errorf("record = %q, want %q", sb.String(), want)
	}
}

func TestExceedString(t *testing.T) {
	cases := map[Exceed]string{
		ExceedNone:     "none",
		ExceedCPUTime:  "CPU_TIME",
		ExceedRealTime: "REAL_TIME",
		ExceedMemory:   "MEMORY",
		ExceedOutput:   "OUTPUT",
	}
	for e, want := range cases {
		if e.String() != want {
			t.Errorf("%d.String() = %s, want %s", e, e.String(), want)
		}
	}
}

func TestCollectNormalExit(t *testing.T) {
	r := collectReport(exited(3), ExceedNone, 2048, 0.1, 0.2, Limits{})
	if r.Signaled || r.ExitCode != 3 || r.TermSig != 0 || r.Exceed != ExceedNone {
		t.Errorf("report = %+v", r)
	}
	if r.Memory != 2048 || r.CPUTime != 0.1 || r.RealTime != 0.2 {
		t.Errorf("usages clamped without limits: %+v", r)
	}
}

func TestCollectMemoryClamp(t *testing.T) {
	l := Limits{Memory: 32 << 20}
	r := collectReport(signaled(syscall.SIGKILL), ExceedNone, 33<<20, 0.1, 0.2, l)
	if r.Exceed != ExceedMemory {
		t.Errorf("exceed = %v, want MEMORY", r.Exceed)
	}
	if r.Memory != l.Memory {
		t.Errorf("memory = %d, want clamp to %d", r.Memory, l.Memory)
	}
	if !r.Signaled || r.TermSig != 9 {
		t.Errorf("report = %+v", r)
	}
}

func TestCollectSigXCPUWins(t *testing.T) {
	l := Limits{CPUTime: 0.3}
	r := collectReport(signaled(syscall.SIGXCPU), ExceedNone, 0, 0.25, 0.4, l)
	if r.Exceed != ExceedCPUTime {
		t.Errorf("exceed = %v, want CPU_TIME", r.Exceed)
	}
	if r.CPUTime != 0.3 {
		t.Errorf("cputime = %v, want clamped 0.3", r.CPUTime)
	}
}

func TestCollectSigXFSZ(t *testing.T) {
	r := collectReport(signaled(syscall.SIGXFSZ), ExceedNone, 0, 0, 0, Limits{Output: 1 << 20})
	if r.Exceed != ExceedOutput {
		t.Errorf("exceed = %v, want OUTPUT", r.Exceed)
	}
	if r.TermSig != int(syscall.SIGXFSZ) {
		t.Errorf("termsig = %d", r.TermSig)
	}
}

func TestCollectRealTimeClamp(t *testing.T) {
	l := Limits{RealTime: 0.5}
	r := collectReport(0, ExceedRealTime, 0, 0, 0.63, l)
	if r.Exceed != ExceedRealTime || r.RealTime != 0.5 {
		t.Errorf("report = %+v", r)
	}
}

func TestCollectLoopTagRetained(t *testing.T) {
	// loop-detected tag survives when no reap condition overrides it
	r := collectReport(0, ExceedOutput, 0, 0, 0, Limits{})
	if r.Exceed != ExceedOutput {
		t.Errorf("exceed = %v, want OUTPUT", r.Exceed)
	}
}
