package seccomp

import "strconv"

// Compile builds the BPF program for the program's rules. Plain name lists
// compile through the pure-Go backend; argument conditions and numeric
// syscall identifiers need libseccomp.
func (p *Program) Compile() (Filter, error) {
	if p.HasArgRules() || p.hasNumericNames() {
		return p.compileLibseccomp()
	}
	return p.compileBPF()
}

func (p *Program) hasNumericNames() bool {
	for _, r := range p.Rules {
		if _, err := strconv.Atoi(r.Name); err == nil {
			return true
		}
	}
	return false
}
