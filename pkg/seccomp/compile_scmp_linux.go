package seccomp

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"syscall"

	libseccomp "github.com/seccomp/libseccomp-golang"
)

var scmpErrno = libseccomp.ActErrno.SetReturnCode(int16(syscall.EPERM))

func toScmpAction(a Action) libseccomp.ScmpAction {
	switch a {
	case ActionAllow:
		return libseccomp.ActAllow
	case ActionKill:
		return libseccomp.ActKillThread
	default:
		return scmpErrno
	}
}

func toScmpCompare(op CompareOp) libseccomp.ScmpCompareOp {
	switch op {
	case CompareEqual:
		return libseccomp.CompareEqual
	case CompareNotEqual:
		return libseccomp.CompareNotEqual
	case CompareLess:
		return libseccomp.CompareLess
	case CompareGreater:
		return libseccomp.CompareGreater
	case CompareLessEqual:
		return libseccomp.CompareLessOrEqual
	case CompareGreaterEqual:
		return libseccomp.CompareGreaterEqual
	default:
		return libseccomp.CompareMaskedEqual
	}
}

// compileLibseccomp builds the program through libseccomp, which handles
// per-argument comparisons and raw syscall numbers.
func (p *Program) compileLibseccomp() (Filter, error) {
	def := scmpErrno
	if p.Blacklist {
		def = libseccomp.ActAllow
	}
	filter, err := libseccomp.NewFilter(def)
	if err != nil {
		return nil, fmt.Errorf("seccomp: new filter: %w", err)
	}
	defer filter.Release()

	for _, r := range p.Rules {
		sc, err := resolveSyscall(r.Name)
		if err != nil {
			return nil, err
		}
		act := toScmpAction(p.ruleAction(r))
		if len(r.Args) == 0 {
			if err := filter.AddRule(sc, act); err != nil {
				return nil, fmt.Errorf("seccomp: rule %s: %w", r.Name, err)
			}
			continue
		}
		conds := make([]libseccomp.ScmpCondition, 0, len(r.Args))
		for _, a := range r.Args {
			var cond libseccomp.ScmpCondition
			if a.Op == CompareMaskedEqual {
				cond, err = libseccomp.MakeCondition(uint(a.Arg), libseccomp.CompareMaskedEqual, a.Mask, a.Value)
			} else {
				cond, err = libseccomp.MakeCondition(uint(a.Arg), toScmpCompare(a.Op), a.Value)
			}
			if err != nil {
				return nil, fmt.Errorf("seccomp: rule %s: %w", r.Name, err)
			}
			conds = append(conds, cond)
		}
		if err := filter.AddRuleConditional(sc, act, conds); err != nil {
			return nil, fmt.Errorf("seccomp: rule %s: %w", r.Name, err)
		}
	}
	return exportBPF(filter)
}

func resolveSyscall(name string) (libseccomp.ScmpSyscall, error) {
	if nr, err := strconv.Atoi(name); err == nil {
		return libseccomp.ScmpSyscall(nr), nil
	}
	sc, err := libseccomp.GetSyscallFromName(name)
	if err != nil {
		return 0, fmt.Errorf("seccomp: unknown syscall %q", name)
	}
	return sc, nil
}

// exportBPF converts a libseccomp filter to the kernel readable BPF program.
func exportBPF(filter *libseccomp.ScmpFilter) (Filter, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	// export BPF to pipe
	go func() {
		filter.ExportBPF(w)
		w.Close()
	}()

	bin, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return filterFromBytes(bin)
}
