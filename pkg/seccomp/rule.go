// Package seccomp compiles the syscall filter expression into a BPF program
// installed on the child via seccomp(2).
//
// The expression is a comma separated rule list. Each rule is a syscall name
// (or decimal number), optional bracketed argument conditions, and an
// optional action suffix (:k kill, :e EPERM, :a allow). A leading '!' or '-'
// turns the list into a blacklist: listed syscalls get their action (EPERM
// unless overridden), everything else is allowed. Without the prefix the
// list is a whitelist: listed syscalls are allowed, everything else returns
// EPERM. A leading '=' or '+' names the whitelist mode explicitly.
package seccomp

import (
	"fmt"
	"strconv"
	"strings"
)

// CompareOp is an argument comparison operator.
type CompareOp int

// Comparison operators for argument conditions.
const (
	CompareEqual CompareOp = iota + 1
	CompareNotEqual
	CompareLess
	CompareGreater
	CompareLessEqual
	CompareGreaterEqual
	CompareMaskedEqual
)

func (op CompareOp) String() string {
	switch op {
	case CompareEqual:
		return "=="
	case CompareNotEqual:
		return "!="
	case CompareLess:
		return "<"
	case CompareGreater:
		return ">"
	case CompareLessEqual:
		return "<="
	case CompareGreaterEqual:
		return ">="
	case CompareMaskedEqual:
		return "&=="
	default:
		return "?"
	}
}

// ArgRule compares one syscall argument register against a constant.
// Arg 0 is named 'a' in the grammar, 5 is 'f'. For CompareMaskedEqual the
// register is first masked with Mask.
type ArgRule struct {
	Arg   int
	Op    CompareOp
	Mask  uint64
	Value uint64
}

func (r ArgRule) String() string {
	if r.Op == CompareMaskedEqual {
		return fmt.Sprintf("%c&%d==%d", 'a'+r.Arg, r.Mask, r.Value)
	}
	return fmt.Sprintf("%c%s%d", 'a'+r.Arg, r.Op, r.Value)
}

// Rule is one syscall rule of the filter expression.
type Rule struct {
	Name   string
	Args   []ArgRule
	Action Action
}

func (r Rule) String() string {
	var sb strings.Builder
	sb.WriteString(r.Name)
	if len(r.Args) > 0 {
		sb.WriteByte('[')
		for i, a := range r.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(a.String())
		}
		sb.WriteByte(']')
	}
	sb.WriteString(r.Action.suffix())
	return sb.String()
}

// Program is a parsed filter expression.
type Program struct {
	Rules []Rule
	// Blacklist selects the list mode: listed syscalls are denied and
	// the rest allowed
	Blacklist bool
}

// String renders the program back into the filter grammar. The output
// parses to an identical program.
func (p *Program) String() string {
	var sb strings.Builder
	if p.Blacklist {
		sb.WriteByte('!')
	}
	for i, r := range p.Rules {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(r.String())
	}
	return sb.String()
}

// HasArgRules reports whether any rule carries argument conditions.
func (p *Program) HasArgRules() bool {
	for _, r := range p.Rules {
		if len(r.Args) > 0 {
			return true
		}
	}
	return false
}

// ruleAction resolves ActionDefault against the list mode.
func (p *Program) ruleAction(r Rule) Action {
	if r.Action != ActionDefault {
		return r.Action
	}
	if p.Blacklist {
		return ActionErrno
	}
	return ActionAllow
}

// Parse parses a filter expression.
func Parse(s string) (*Program, error) {
	p := &Program{}
	switch {
	case s == "":
		return nil, fmt.Errorf("seccomp: empty filter")
	case s[0] == '!' || s[0] == '-':
		p.Blacklist = true
		s = s[1:]
	case s[0] == '=' || s[0] == '+':
		s = s[1:]
	}
	for _, part := range splitRules(s) {
		r, err := parseRule(part)
		if err != nil {
			return nil, err
		}
		p.Rules = append(p.Rules, r)
	}
	if len(p.Rules) == 0 {
		return nil, fmt.Errorf("seccomp: filter has no rules")
	}
	return p, nil
}

// splitRules splits on ',' outside brackets.
func splitRules(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func parseRule(s string) (Rule, error) {
	var r Rule
	if s == "" {
		return r, fmt.Errorf("seccomp: empty rule")
	}

	// action suffix
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		switch s[i:] {
		case ":k":
			r.Action = ActionKill
		case ":e":
			r.Action = ActionErrno
		case ":a":
			r.Action = ActionAllow
		default:
			return r, fmt.Errorf("seccomp: bad action %q in rule %q", s[i:], s)
		}
		s = s[:i]
	}

	// argument conditions
	if i := strings.IndexByte(s, '['); i >= 0 {
		if s[len(s)-1] != ']' {
			return r, fmt.Errorf("seccomp: unbalanced '[' in rule %q", s)
		}
		args := s[i+1 : len(s)-1]
		s = s[:i]
		for _, a := range strings.Split(args, ",") {
			ar, err := parseArgRule(a)
			if err != nil {
				return r, err
			}
			r.Args = append(r.Args, ar)
		}
	}

	if !validName(s) {
		return r, fmt.Errorf("seccomp: bad syscall name %q", s)
	}
	r.Name = s
	return r, nil
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
			c >= '0' && c <= '9' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func parseArgRule(s string) (ArgRule, error) {
	var r ArgRule
	if len(s) < 2 || s[0] < 'a' || s[0] > 'f' {
		return r, fmt.Errorf("seccomp: bad argument rule %q", s)
	}
	r.Arg = int(s[0] - 'a')
	s = s[1:]

	// masked compare: ARG '&' MASK '==' VALUE
	if s[0] == '&' {
		r.Op = CompareMaskedEqual
		rest := s[1:]
		i := strings.IndexByte(rest, '=')
		if i <= 0 {
			return r, fmt.Errorf("seccomp: bad masked argument rule %q", s)
		}
		mask, err := strconv.ParseUint(rest[:i], 10, 64)
		if err != nil {
			return r, fmt.Errorf("seccomp: bad mask in %q: %v", s, err)
		}
		v := rest[i+1:]
		v = strings.TrimPrefix(v, "=")
		value, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return r, fmt.Errorf("seccomp: bad value in %q: %v", s, err)
		}
		r.Mask, r.Value = mask, value
		return r, nil
	}

	ops := []struct {
		tok string
		op  CompareOp
	}{
		// longest first
		{"==", CompareEqual},
		{"!=", CompareNotEqual},
		{"<=", CompareLessEqual},
		{">=", CompareGreaterEqual},
		{"=", CompareEqual},
		{"!", CompareNotEqual},
		{"<", CompareLess},
		{">", CompareGreater},
	}
	for _, o := range ops {
		if strings.HasPrefix(s, o.tok) {
			v, err := strconv.ParseUint(s[len(o.tok):], 10, 64)
			if err != nil {
				return r, fmt.Errorf("seccomp: bad value in %q: %v", s, err)
			}
			r.Op = o.op
			r.Value = v
			return r, nil
		}
	}
	return r, fmt.Errorf("seccomp: bad operator in argument rule %q", s)
}
