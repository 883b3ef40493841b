package seccomp

import (
	"fmt"
	"syscall"

	elastic "github.com/elastic/go-seccomp-bpf"
	"golang.org/x/net/bpf"
)

func toElasticAction(a Action) elastic.Action {
	switch a {
	case ActionAllow:
		return elastic.ActionAllow
	case ActionKill:
		return elastic.ActionKillThread
	default:
		return elastic.ActionErrno.WithReturnData(int(syscall.EPERM))
	}
}

// compileBPF assembles the program without cgo: rules are grouped by action
// into a policy, assembled to symbolic instructions and lowered to the raw
// sock_filter form.
func (p *Program) compileBPF() (Filter, error) {
	def := toElasticAction(ActionErrno)
	if p.Blacklist {
		def = elastic.ActionAllow
	}

	// group names by resolved action, preserving first-seen order
	var order []Action
	groups := make(map[Action][]string)
	for _, r := range p.Rules {
		act := p.ruleAction(r)
		if _, ok := groups[act]; !ok {
			order = append(order, act)
		}
		groups[act] = append(groups[act], r.Name)
	}

	policy := elastic.Policy{DefaultAction: def}
	for _, act := range order {
		policy.Syscalls = append(policy.Syscalls, elastic.SyscallGroup{
			Action: toElasticAction(act),
			Names:  groups[act],
		})
	}

	insts, err := policy.Assemble()
	if err != nil {
		return nil, fmt.Errorf("seccomp: assemble: %w", err)
	}
	raw, err := bpf.Assemble(insts)
	if err != nil {
		return nil, fmt.Errorf("seccomp: lower: %w", err)
	}
	f := make(Filter, 0, len(raw))
	for _, ri := range raw {
		f = append(f, syscall.SockFilter{
			Code: ri.Op,
			Jt:   ri.Jt,
			Jf:   ri.Jf,
			K:    ri.K,
		})
	}
	return f, nil
}
