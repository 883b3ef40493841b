package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseLimits(t *testing.T) {
	o, err := parseOptions([]string{
		"--max-cpu-time", "0.5",
		"--max-real-time", "2",
		"--max-memory", "64m",
		"--max-output", "1m",
		"--max-nprocess", "16",
		"--max-nfile", "64",
		"--max-stack", "8m",
		"--", "/bin/true",
	})
	if err != nil {
		t.Fatal(err)
	}
	if o.cpuTimeLimit != 0.5 || o.realTimeLimit != 2 {
		t.Errorf("time limits = %v %v", o.cpuTimeLimit, o.realTimeLimit)
	}
	if o.memoryLimit != 64<<20 {
		t.Errorf("memoryLimit = %d, want %d", o.memoryLimit, 64<<20)
	}
	if o.outputLimit != 1<<20 || o.maxStack != 8<<20 {
		t.Errorf("output/stack = %d %d", o.outputLimit, o.maxStack)
	}
	if o.maxNProc != 16 || o.maxNoFile != 64 {
		t.Errorf("nproc/nfile = %d %d", o.maxNProc, o.maxNoFile)
	}
	if len(o.command) != 1 || o.command[0] != "/bin/true" {
		t.Errorf("command = %v", o.command)
	}
}

func TestParseDefaults(t *testing.T) {
	o, err := parseOptions([]string{"/bin/true"})
	if err != nil {
		t.Fatal(err)
	}
	if !o.network || !o.isolateProcess || !o.noNewPrivs {
		t.Errorf("defaults: net=%v isolate=%v nnp=%v", o.network, o.isolateProcess, o.noNewPrivs)
	}
	if o.basicDevices || o.remountDev || o.resetEnv || o.passExitcode {
		t.Error("boolean defaults wrong")
	}
	if o.maxNProc != 2048 || o.maxNoFile != 256 {
		t.Errorf("rlimit defaults = %d %d", o.maxNProc, o.maxNoFile)
	}
	if o.interval != 0.02 {
		t.Errorf("interval = %v", o.interval)
	}
	if o.uid != int64(os.Getuid()) || o.gid != int64(os.Getgid()) {
		t.Errorf("identity defaults = %d %d", o.uid, o.gid)
	}
}

func TestParseSmallMemoryRaised(t *testing.T) {
	o, err := parseOptions([]string{"--max-memory", "1000", "/bin/true"})
	if err != nil {
		t.Fatal(err)
	}
	if o.memoryLimit != minMemoryLimit {
		t.Errorf("memoryLimit = %d, want raised to %d", o.memoryLimit, minMemoryLimit)
	}
}

func TestParseRepeatable(t *testing.T) {
	o, err := parseOptions([]string{
		"--bindfs", "/a", "/b",
		"--bindfs-ro", "/c", "/d",
		"--remount-ro", "/a",
		"--tmpfs", "/tmp", "1m",
		"--tmpfs", "/ro", "0",
		"--env", "K", "V",
		"--cgroup-option", "memory", "memory.swappiness", "1",
		"--fd", "4",
		"--fd", "5",
		"--cmd", "echo hi",
		"--", "/bin/true", "arg",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(o.binds) != 2 || o.binds[1] != (bindEntry{Dest: "/c", Src: "/d"}) {
		t.Errorf("binds = %v", o.binds)
	}
	// /a from --remount-ro, /c from --bindfs-ro
	if len(o.remounts) != 2 {
		t.Errorf("remounts = %v", o.remounts)
	}
	if !o.bindDest["/a"] || !o.bindDest["/c"] {
		t.Errorf("bindDest = %v", o.bindDest)
	}
	if len(o.tmpfs) != 2 || o.tmpfs[0].Size != 1<<20 || o.tmpfs[1].Size != 0 {
		t.Errorf("tmpfs = %v", o.tmpfs)
	}
	if len(o.envs) != 1 || o.envs[0] != (envEntry{Key: "K", Value: "V"}) {
		t.Errorf("envs = %v", o.envs)
	}
	if len(o.cgOptions) != 1 || o.cgOptions[0].Subsys != "memory" {
		t.Errorf("cgOptions = %v", o.cgOptions)
	}
	if len(o.keepFds) != 2 || o.keepFds[0] != 4 || o.keepFds[1] != 5 {
		t.Errorf("keepFds = %v", o.keepFds)
	}
	if len(o.commands) != 1 {
		t.Errorf("commands = %v", o.commands)
	}
	if len(o.command) != 2 || o.command[1] != "arg" {
		t.Errorf("command = %v", o.command)
	}
}

func TestParseMinNiceAlias(t *testing.T) {
	o, err := parseOptions([]string{"--min-nice", "5", "/bin/true"})
	if err != nil {
		t.Fatal(err)
	}
	if !o.hasNice || o.minNice != 15 {
		t.Errorf("minNice = %d hasNice = %v, want 15 true", o.minNice, o.hasNice)
	}
}

func TestParseUts(t *testing.T) {
	o, err := parseOptions([]string{"--hostname", "judge", "--domainname", "local", "/bin/true"})
	if err != nil {
		t.Fatal(err)
	}
	if o.hostname != "judge" || o.domainname != "local" {
		t.Errorf("uts = %q %q", o.hostname, o.domainname)
	}
	o, err = parseOptions([]string{"--ostype", "Linux", "/bin/true"})
	if err != nil {
		t.Fatal(err)
	}
	if len(o.utsExtra) != 1 || o.utsExtra[0] != "ostype" {
		t.Errorf("utsExtra = %v", o.utsExtra)
	}
}

func TestParseErrors(t *testing.T) {
	for _, args := range [][]string{
		{"--max-cpu-time"},
		{"--max-cpu-time", "abc", "/bin/true"},
		{"--network", "maybe", "/bin/true"},
		{"--max-memory", "12q", "/bin/true"},
		{"--bindfs", "/only-dest"},
		{"--no-such-option", "/bin/true"},
	} {
		if _, err := parseOptions(args); err == nil {
			t.Errorf("parseOptions(%v): expected error", args)
		}
	}
}

func TestParseIntervalIgnoresNonPositive(t *testing.T) {
	o, err := parseOptions([]string{"--interval", "-1", "/bin/true"})
	if err != nil {
		t.Fatal(err)
	}
	if o.interval != 0.02 {
		t.Errorf("interval = %v, want default kept", o.interval)
	}
}

func TestParseGroupZeroIgnored(t *testing.T) {
	o, err := parseOptions([]string{"--group", "0", "--group", "100", "/bin/true"})
	if err != nil {
		t.Fatal(err)
	}
	if len(o.groups) != 1 || o.groups[0] != 100 {
		t.Errorf("groups = %v", o.groups)
	}
}

func TestConfigFileDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lrun.yaml")
	data := "max-cpu-time: 1.5\nmax-memory: 64m\nnetwork: false\nnice: 3\nsyscalls: read,write\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	o, err := parseOptions([]string{"--config", path, "/bin/true"})
	if err != nil {
		t.Fatal(err)
	}
	if o.cpuTimeLimit != 1.5 || o.memoryLimit != 64<<20 || o.network || o.nice != 3 {
		t.Errorf("file defaults not applied: %+v", o)
	}
	if !o.syscallsSet || o.syscalls != "read,write" {
		t.Errorf("syscalls = %q", o.syscalls)
	}

	// the command line wins over the file
	o, err = parseOptions([]string{"--config", path, "--max-cpu-time", "2", "/bin/true"})
	if err != nil {
		t.Fatal(err)
	}
	if o.cpuTimeLimit != 2 {
		t.Errorf("cli did not override file: %v", o.cpuTimeLimit)
	}

	if _, err := parseOptions([]string{"--config", filepath.Join(dir, "missing.yaml"), "/bin/true"}); err == nil {
		t.Error("missing config file accepted")
	}
}
