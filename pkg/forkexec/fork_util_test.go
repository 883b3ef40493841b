package forkexec

import "testing"

func TestPrepareCloseRanges(t *testing.T) {
	max := uint(^uint32(0))

	// no kept fds: one range from 3 up
	rs := prepareCloseRanges(nil)
	if len(rs) != 1 || rs[0].First != 3 || rs[0].Last != max {
		t.Errorf("ranges = %+v", rs)
	}

	// keep 5 and 9
	rs = prepareCloseRanges([]int{9, 5})
	want := []fdRange{{3, 4}, {6, 8}, {10, max}}
	if len(rs) != len(want) {
		t.Fatalf("ranges = %+v, want %+v", rs, want)
	}
	for i := range want {
		if rs[i] != want[i] {
			t.Errorf("ranges[%d] = %+v, want %+v", i, rs[i], want[i])
		}
	}

	// stdio and duplicates are ignored
	rs = prepareCloseRanges([]int{0, 1, 2, 3, 3})
	if len(rs) != 1 || rs[0].First != 4 {
		t.Errorf("ranges = %+v", rs)
	}

	// adjacent kept fds produce no empty gap
	rs = prepareCloseRanges([]int{3, 4})
	if len(rs) != 1 || rs[0].First != 5 {
		t.Errorf("ranges = %+v", rs)
	}
}

func TestPrepareExec(t *testing.T) {
	argv0, argv, env, err := prepareExec([]string{"/bin/true"}, []string{"A=1"})
	if err != nil {
		t.Fatal(err)
	}
	if argv0 == nil || len(argv) != 2 || argv[1] != nil || len(env) != 2 {
		t.Errorf("unexpected exec params: %v %v %v", argv0, argv, env)
	}
	if _, _, _, err := prepareExec([]string{"bad\x00arg"}, nil); err == nil {
		t.Error("NUL in argv accepted")
	}
}
