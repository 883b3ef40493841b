package seccomp

import "testing"

func TestCompileBPF(t *testing.T) {
	p, err := Parse("read,write,exit_group,rt_sigreturn")
	if err != nil {
		t.Fatal(err)
	}
	f, err := p.compileBPF()
	if err != nil {
		t.Fatal(err)
	}
	if len(f) == 0 {
		t.Fatal("empty filter")
	}
	prog := f.SockFprog()
	if prog.Len != uint16(len(f)) || prog.Filter == nil {
		t.Errorf("bad SockFprog: %+v", prog)
	}
}

func TestCompileBlacklistBPF(t *testing.T) {
	p, err := Parse("!sethostname:k,setdomainname")
	if err != nil {
		t.Fatal(err)
	}
	f, err := p.compileBPF()
	if err != nil {
		t.Fatal(err)
	}
	if len(f) == 0 {
		t.Fatal("empty filter")
	}
}

func TestCompileUnknownSyscall(t *testing.T) {
	p, err := Parse("read,notasyscall")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Compile(); err == nil {
		t.Error("unknown syscall did not fail compilation")
	}
}

func TestCompileSelectsLibseccomp(t *testing.T) {
	p, err := Parse("!write[a=2]")
	if err != nil {
		t.Fatal(err)
	}
	f, err := p.Compile()
	if err != nil {
		t.Skipf("libseccomp unavailable: %v", err)
	}
	if len(f) == 0 {
		t.Fatal("empty filter")
	}
}

func TestFilterFromBytes(t *testing.T) {
	if _, err := filterFromBytes(nil); err == nil {
		t.Error("empty program accepted")
	}
	if _, err := filterFromBytes(make([]byte, 12)); err == nil {
		t.Error("misaligned program accepted")
	}
	f, err := filterFromBytes(make([]byte, 16))
	if err != nil {
		t.Fatal(err)
	}
	if len(f) != 2 {
		t.Errorf("len = %d, want 2", len(f))
	}
}
