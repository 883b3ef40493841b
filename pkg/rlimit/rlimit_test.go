package rlimit

import (
	"syscall"
	"testing"
)

func find(rs []RLimit, res int) (RLimit, bool) {
	for _, r := range rs {
		if r.Res == res {
			return r, true
		}
	}
	return RLimit{}, false
}

func TestDefaults(t *testing.T) {
	r := New()
	rs := r.PrepareRLimit()
	if len(rs) != 4 {
		t.Fatalf("default set has %d entries, want 4", len(rs))
	}
	if rl, _ := find(rs, syscall.RLIMIT_NOFILE); rl.Rlim.Cur != DefaultNoFile {
		t.Errorf("RLIMIT_NOFILE = %d, want %d", rl.Rlim.Cur, DefaultNoFile)
	}
	if rl, _ := find(rs, unixRlimitNProc); rl.Rlim.Cur != DefaultNProc {
		t.Errorf("RLIMIT_NPROC = %d, want %d", rl.Rlim.Cur, DefaultNProc)
	}
	if rl, ok := find(rs, syscall.RLIMIT_CORE); !ok || rl.Rlim.Max != 0 {
		t.Errorf("RLIMIT_CORE = %+v, want present and 0", rl)
	}
	if _, ok := find(rs, syscall.RLIMIT_CPU); ok {
		t.Error("RLIMIT_CPU present without a cpu limit")
	}
}

func TestOptionalLimits(t *testing.T) {
	r := New()
	r.CPU = 2
	r.FileSize = 1 << 20
	r.Stack = 8 << 20
	r.Nice = 15
	r.HasNice = true
	rs := r.PrepareRLimit()
	if rl, ok := find(rs, syscall.RLIMIT_CPU); !ok || rl.Rlim.Cur != 2 {
		t.Errorf("RLIMIT_CPU = %+v, want 2s", rl)
	}
	if rl, ok := find(rs, syscall.RLIMIT_FSIZE); !ok || rl.Rlim.Cur != 1<<20 {
		t.Errorf("RLIMIT_FSIZE = %+v, want 1MiB", rl)
	}
	if rl, ok := find(rs, syscall.RLIMIT_STACK); !ok || rl.Rlim.Cur != 8<<20 {
		t.Errorf("RLIMIT_STACK = %+v, want 8MiB", rl)
	}
	if rl, ok := find(rs, unixRlimitNice); !ok || rl.Rlim.Cur != 15 {
		t.Errorf("RLIMIT_NICE = %+v, want 15", rl)
	}
}

func TestString(t *testing.T) {
	r := New()
	r.CPU = 1
	s := r.String()
	if len(s) == 0 || s[:8] != "RLimits[" {
		t.Errorf("unexpected String: %q", s)
	}
}
