package procfs

import (
	"bytes"
	"os"
	"path"
	"strconv"
)

// ProcessState returns the one-letter scheduler state from
// /proc/<pid>/status (e.g. 'R', 'S', 'Z'). Returns 0 if the process is gone
// or the field cannot be parsed.
func ProcessState(pid int) byte {
	b, err := os.ReadFile(path.Join(ProcPath, strconv.Itoa(pid), "status"))
	if err != nil {
		return 0
	}
	return parseState(b)
}

func parseState(b []byte) byte {
	const key = "State:"
	for len(b) > 0 {
		line := b
		if i := bytes.IndexByte(b, '\n'); i >= 0 {
			line, b = b[:i], b[i+1:]
		} else {
			b = nil
		}
		if !bytes.HasPrefix(line, []byte(key)) {
			continue
		}
		v := bytes.TrimSpace(line[len(key):])
		if len(v) == 0 {
			return 0
		}
		return v[0]
	}
	return 0
}
