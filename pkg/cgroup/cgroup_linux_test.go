package cgroup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/acmoj/lrun/pkg/procfs"
)

// fakeRoot points basePath at a fixture tree with every subsystem
// pre-"mounted" (tasks file present at the hierarchy root).
func fakeRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	old := basePath
	basePath = dir
	t.Cleanup(func() { basePath = old })
	for _, s := range subsystems {
		if err := os.MkdirAll(filepath.Join(dir, s), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, s, "tasks"), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestCreateAndSet(t *testing.T) {
	dir := fakeRoot(t)
	cg, err := Create("lrun100", Owned)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range subsystems {
		if _, err := os.Stat(filepath.Join(dir, s, "lrun100")); err != nil {
			t.Errorf("subsystem %s missing group dir: %v", s, err)
		}
	}
	if err := cg.Set(Memory, "memory.swappiness", "0"); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(dir, Memory, "lrun100", "memory.swappiness"))
	if err != nil || string(b) != "0" {
		t.Errorf("swappiness = %q, %v", b, err)
	}
	if err := cg.Set("blkio", "x", "y"); err == nil {
		t.Error("Set on unknown subsystem should fail")
	}
}

func TestAccounting(t *testing.T) {
	dir := fakeRoot(t)
	cg, err := Create("lrun101", Owned)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, CPUAcct, "lrun101", "cpuacct.usage"), []byte("1500000000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, Memory, "lrun101", "memory.max_usage_in_bytes"), []byte("4096\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cpu, err := cg.CPUUsage()
	if err != nil {
		t.Fatal(err)
	}
	if cpu != 1.5 {
		t.Errorf("CPUUsage = %v, want 1.5", cpu)
	}
	mem, err := cg.MemoryPeak()
	if err != nil {
		t.Fatal(err)
	}
	if mem != 4096 {
		t.Errorf("MemoryPeak = %d, want 4096", mem)
	}
}

func TestSetMemoryLimit(t *testing.T) {
	dir := fakeRoot(t)
	cg, err := Create("lrun102", Owned)
	if err != nil {
		t.Fatal(err)
	}
	if err := cg.SetMemoryLimit(32 << 20); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(filepath.Join(dir, Memory, "lrun102", "memory.limit_in_bytes"))
	if err != nil || string(b) != "33554432" {
		t.Errorf("limit_in_bytes = %q, %v", b, err)
	}
	// memsw file absent in the fixture, must not be created
	if _, err := os.Stat(filepath.Join(dir, Memory, "lrun102", "memory.memsw.limit_in_bytes")); err == nil {
		t.Error("memsw limit written although the file does not exist")
	}
}

func TestLimitDevices(t *testing.T) {
	dir := fakeRoot(t)
	cg, err := Create("lrun103", Owned)
	if err != nil {
		t.Fatal(err)
	}
	if err := cg.LimitDevices(); err != nil {
		t.Fatal(err)
	}
	// plain files overwrite rather than append; the last allow entry wins
	// in the fixture, which is enough to see the writes happened
	b, err := os.ReadFile(filepath.Join(dir, Devices, "lrun103", "devices.deny"))
	if err != nil || string(b) != "a" {
		t.Errorf("devices.deny = %q, %v", b, err)
	}
	if _, err := os.Stat(filepath.Join(dir, Devices, "lrun103", "devices.allow")); err != nil {
		t.Errorf("devices.allow missing: %v", err)
	}
}

func TestTasksAndEmpty(t *testing.T) {
	dir := fakeRoot(t)
	cg, err := Create("lrun104", Owned)
	if err != nil {
		t.Fatal(err)
	}
	if !cg.Empty() {
		t.Error("fresh group not empty")
	}
	if err := os.WriteFile(filepath.Join(dir, CPU, "lrun104", "tasks"), []byte("101\n102\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, Freezer, "lrun104", "tasks"), []byte("102\n103\n"), 0644); err != nil {
		t.Fatal(err)
	}
	tasks := cg.Tasks()
	if len(tasks) != 3 {
		t.Errorf("Tasks = %v, want union of 3 pids", tasks)
	}
	if cg.Empty() {
		t.Error("group with tasks reported empty")
	}
}

func TestOutputAccounting(t *testing.T) {
	dir := fakeRoot(t)
	cg, err := Create("lrun105", Owned)
	if err != nil {
		t.Fatal(err)
	}

	proc := t.TempDir()
	oldProc := procfs.ProcPath
	procfs.ProcPath = proc
	t.Cleanup(func() { procfs.ProcPath = oldProc })

	writeIO := func(pid, n string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Join(proc, pid), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(proc, pid, "io"), []byte("write_bytes: "+n+"\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	writeIO("201", "1000")
	writeIO("202", "500")
	if err := os.WriteFile(filepath.Join(dir, CPU, "lrun105", "tasks"), []byte("201\n202\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cg.UpdateOutputCount()
	if got := cg.OutputUsage(); got != 1500 {
		t.Errorf("OutputUsage = %d, want 1500", got)
	}

	// task 202 exits but its contribution stays
	writeIO("201", "2000")
	if err := os.WriteFile(filepath.Join(dir, CPU, "lrun105", "tasks"), []byte("201\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cg.UpdateOutputCount()
	if got := cg.OutputUsage(); got != 2500 {
		t.Errorf("OutputUsage = %d, want 2500", got)
	}

	if err := cg.ResetUsages(); err != nil {
		t.Fatal(err)
	}
	if got := cg.OutputUsage(); got != 0 {
		t.Errorf("OutputUsage after reset = %d, want 0", got)
	}
}

func TestDestroyIdempotent(t *testing.T) {
	dir := fakeRoot(t)
	cg, err := Create("lrun106", Borrowed)
	if err != nil {
		t.Fatal(err)
	}
	if cg.Ownership() != Borrowed {
		t.Error("ownership tag lost")
	}
	if err := cg.Destroy(); err != nil {
		t.Fatal(err)
	}
	for _, s := range subsystems {
		if _, err := os.Stat(filepath.Join(dir, s, "lrun106")); err == nil {
			t.Errorf("subsystem %s dir still present", s)
		}
	}
	if err := cg.Destroy(); err != nil {
		t.Errorf("second Destroy: %v", err)
	}
}
