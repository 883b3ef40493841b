package procfs

import (
	"bytes"
	"os"
	"path"
	"strconv"
)

// WriteBytes returns the write_bytes counter from /proc/<pid>/io for a task.
// The counter includes bytes scheduled for write-back by the task; reading it
// for other users' tasks requires privilege, which the supervisor has.
func WriteBytes(pid int) (uint64, error) {
	b, err := os.ReadFile(path.Join(ProcPath, strconv.Itoa(pid), "io"))
	if err != nil {
		return 0, err
	}
	return parseWriteBytes(b)
}

func parseWriteBytes(b []byte) (uint64, error) {
	const key = "write_bytes:"
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
		return strconv.ParseUint(string(bytes.TrimSpace(line[len(key):])), 10, 64)
	}
	return 0, os.ErrNotExist
}
