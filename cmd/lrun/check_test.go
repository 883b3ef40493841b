package main

import (
	"os"
	"strings"
	"testing"
)

func optsWithCommand() *options {
	o := defaultOptions()
	o.command = []string{"/bin/true"}
	if o.uid == 0 {
		// the test may run as root; pick the non-privileged identity the
		// checks expect
		o.uid = 1000
		o.gid = 1000
	}
	return o
}

func hasError(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func TestCheckRejectsRootIdentity(t *testing.T) {
	o := optsWithCommand()
	o.uid = 0
	o.gid = 0
	errs := checkConfig(o)
	if !hasError(errs, "uid = 0") {
		t.Errorf("uid 0 not rejected: %v", errs)
	}
	if !hasError(errs, "gid = 0") {
		t.Errorf("gid 0 not rejected: %v", errs)
	}
}

func TestCheckEmptyCommand(t *testing.T) {
	o := optsWithCommand()
	o.command = nil
	if !hasError(checkConfig(o), "can not be empty") {
		t.Error("empty command not rejected")
	}
}

func TestCheckCollectsAllErrors(t *testing.T) {
	o := optsWithCommand()
	o.uid = 0
	o.command = nil
	o.utsExtra = []string{"ostype"}
	errs := checkConfig(o)
	if len(errs) < 3 {
		t.Errorf("expected every error collected, got %v", errs)
	}
}

func TestCheckUtsExtraRejected(t *testing.T) {
	o := optsWithCommand()
	o.utsExtra = []string{"osrelease"}
	if !hasError(checkConfig(o), "kernel module") {
		t.Error("osrelease not rejected")
	}
}

func TestCheckBadFilterRejected(t *testing.T) {
	o := optsWithCommand()
	o.syscallsSet = true
	o.syscalls = "read[["
	if !hasError(checkConfig(o), "syscall filter") {
		t.Error("bad filter not rejected")
	}
}

func TestCheckNonRootRestrictions(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("non-root restrictions do not apply to root")
	}
	o := optsWithCommand()
	o.commands = []string{"echo"}
	o.groups = []uint32{100}
	o.noNewPrivs = false
	o.nice = -5
	o.remounts = []remountEntry{{Dest: "/x", Flags: msRdonly}}
	errs := checkConfig(o)
	for _, want := range []string{
		"`--cmd` requires root",
		"`--group` requires root",
		"--no-new-privs false",
		"negative value of `--nice`",
		"--remount-ro",
	} {
		if !hasError(errs, want) {
			t.Errorf("missing error %q in %v", want, errs)
		}
	}
}

func TestCheckRelativeBindRejected(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("path checks do not apply to root")
	}
	o := optsWithCommand()
	o.binds = append(o.binds, bindEntry{Dest: "/sandbox", Src: "relative/path"})
	if !hasError(checkConfig(o), "Relative paths") {
		t.Error("relative bind source not rejected")
	}
}

func TestFollowBinds(t *testing.T) {
	binds := []bindEntry{
		{Dest: "/jail", Src: "/srv/jail"},
		{Dest: "/jail/data", Src: "/var/data"},
	}
	cases := map[string]string{
		"/jail/etc/passwd": "/srv/jail/etc/passwd",
		"/jail/data/x":     "/var/data/x",
		"/other":           "/other",
		"relative":         "relative",
	}
	for in, want := range cases {
		if got := followBinds(binds, in); got != want {
			t.Errorf("followBinds(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestComposeEnv(t *testing.T) {
	t.Setenv("LRUN_TEST_VAR", "old")

	env := composeEnv(true, []envEntry{{Key: "A", Value: "1"}})
	if len(env) != 1 || env[0] != "A=1" {
		t.Errorf("reset env = %v", env)
	}

	env = composeEnv(false, []envEntry{{Key: "LRUN_TEST_VAR", Value: "new"}})
	var found bool
	for _, e := range env {
		if e == "LRUN_TEST_VAR=new" {
			found = true
		}
		if e == "LRUN_TEST_VAR=old" {
			t.Error("override kept the old value")
		}
	}
	if !found {
		t.Errorf("override missing: %v", env)
	}
}
