// Command lrun runs a command under resource limits, namespaces, a cgroup
// and an optional syscall filter, and reports accounting on fd 3.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/docker/go-units"
)

// minMemoryLimit is the smallest accepted --max-memory value; smaller
// values starve the child before exec.
const minMemoryLimit = 500000

type bindEntry struct {
	Dest, Src string
}

type remountEntry struct {
	Dest  string
	Flags uintptr
}

type tmpfsEntry struct {
	Path string
	Size int64
}

type cgroupOption struct {
	Subsys, Key, Value string
}

type envEntry struct {
	Key, Value string
}

// options mirrors the command line. Negative limits mean "not set".
type options struct {
	cpuTimeLimit  float64
	realTimeLimit float64
	memoryLimit   int64
	outputLimit   int64

	maxNProc  uint64
	maxRTPrio uint64
	maxNoFile uint64
	maxStack  int64
	minNice   int64
	hasNice   bool

	isolateProcess bool
	basicDevices   bool
	remountDev     bool
	resetEnv       bool
	network        bool
	passExitcode   bool
	noNewPrivs     bool

	chroot string
	chdir  string

	nice  int64
	umask int64
	uid   int64
	gid   int64

	syscalls    string
	syscallsSet bool

	groups   []uint32
	interval float64
	cgname   string

	hostname   string
	domainname string
	// ostype / osrelease / osversion need an out-of-tree kernel module
	utsExtra []string

	binds    []bindEntry
	bindDest map[string]bool
	remounts []remountEntry
	tmpfs    []tmpfsEntry

	cgOptions []cgroupOption
	envs      []envEntry
	keepFds   []int
	commands  []string

	debug  bool
	status bool

	command []string
}

func defaultOptions() *options {
	return &options{
		cpuTimeLimit:   -1,
		realTimeLimit:  -1,
		memoryLimit:    -1,
		outputLimit:    -1,
		maxNProc:       2048,
		maxNoFile:      256,
		isolateProcess: true,
		network:        true,
		noNewPrivs:     true,
		umask:          022,
		uid:            int64(os.Getuid()),
		gid:            int64(os.Getgid()),
		interval:       0.02,
		bindDest:       make(map[string]bool),
	}
}

// argWalker consumes argv: options first, the command after the first
// non-option token or "--".
type argWalker struct {
	args []string
	pos  int
	opt  string
}

func (w *argWalker) next() (string, error) {
	if w.pos >= len(w.args) {
		return "", fmt.Errorf("option '--%s' requires more arguments", w.opt)
	}
	s := w.args[w.pos]
	w.pos++
	return s, nil
}

func (w *argWalker) nextInt() (int64, error) {
	s, err := w.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("option '--%s': bad integer %q", w.opt, s)
	}
	return v, nil
}

func (w *argWalker) nextFloat() (float64, error) {
	s, err := w.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("option '--%s': bad number %q", w.opt, s)
	}
	return v, nil
}

func (w *argWalker) nextBool() (bool, error) {
	s, err := w.next()
	if err != nil {
		return false, err
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("option '--%s': bad boolean %q", w.opt, s)
	}
	return v, nil
}

func (w *argWalker) nextBytes() (int64, error) {
	s, err := w.next()
	if err != nil {
		return 0, err
	}
	v, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("option '--%s': bad size %q", w.opt, s)
	}
	return v, nil
}

// parseOptions walks argv into an options value. The returned options are
// syntactically valid; semantic checks happen in checkConfig.
func parseOptions(args []string) (*options, error) {
	o := defaultOptions()

	// a config file provides defaults and is applied before everything
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "--config" {
			if err := loadDefaults(args[i+1], o); err != nil {
				return nil, err
			}
			break
		}
	}

	w := &argWalker{args: args}
	for w.pos < len(w.args) {
		arg := w.args[w.pos]
		if len(arg) < 2 || arg[:2] != "--" {
			break
		}
		w.pos++
		w.opt = arg[2:]

		var err error
		switch w.opt {
		case "":
			// met --
			o.command = w.args[w.pos:]
			return o, nil
		case "max-cpu-time":
			o.cpuTimeLimit, err = w.nextFloat()
		case "max-real-time":
			o.realTimeLimit, err = w.nextFloat()
		case "max-memory":
			var v int64
			if v, err = w.nextBytes(); err == nil {
				if v > 0 && v < minMemoryLimit {
					fmt.Fprintf(os.Stderr, "max-memory too small, changed to %d.\n", minMemoryLimit)
					v = minMemoryLimit
				}
				o.memoryLimit = v
			}
		case "max-output":
			o.outputLimit, err = w.nextBytes()
		case "max-nprocess":
			var v int64
			if v, err = w.nextInt(); err == nil {
				o.maxNProc = uint64(v)
			}
		case "min-nice":
			// deprecated alias, repurposes RLIMIT_NICE
			if o.minNice, err = w.nextInt(); err == nil {
				o.minNice = 20 - o.minNice
				o.hasNice = true
			}
		case "max-rtprio":
			var v int64
			if v, err = w.nextInt(); err == nil {
				o.maxRTPrio = uint64(v)
			}
		case "max-nfile":
			var v int64
			if v, err = w.nextInt(); err == nil {
				o.maxNoFile = uint64(v)
			}
		case "max-stack":
			o.maxStack, err = w.nextBytes()
		case "isolate-process":
			o.isolateProcess, err = w.nextBool()
		case "basic-devices":
			o.basicDevices, err = w.nextBool()
		case "remount-dev":
			o.remountDev, err = w.nextBool()
		case "reset-env":
			o.resetEnv, err = w.nextBool()
		case "network":
			o.network, err = w.nextBool()
		case "pass-exitcode":
			o.passExitcode, err = w.nextBool()
		case "no-new-privs":
			o.noNewPrivs, err = w.nextBool()
		case "chroot":
			o.chroot, err = w.next()
		case "chdir":
			o.chdir, err = w.next()
		case "nice":
			o.nice, err = w.nextInt()
		case "umask":
			o.umask, err = w.nextInt()
		case "uid":
			o.uid, err = w.nextInt()
		case "gid":
			o.gid, err = w.nextInt()
		case "syscalls":
			if o.syscalls, err = w.next(); err == nil {
				o.syscallsSet = true
			}
		case "group":
			var v int64
			if v, err = w.nextInt(); err == nil && v != 0 {
				o.groups = append(o.groups, uint32(v))
			}
		case "interval":
			var v float64
			if v, err = w.nextFloat(); err == nil && v > 0 {
				o.interval = v
			}
		case "cgname":
			o.cgname, err = w.next()
		case "hostname":
			o.hostname, err = w.next()
		case "domainname":
			o.domainname, err = w.next()
		case "ostype", "osrelease", "osversion":
			if _, err = w.next(); err == nil {
				o.utsExtra = append(o.utsExtra, w.opt)
			}
		case "remount-ro":
			var dest string
			if dest, err = w.next(); err == nil {
				o.addRemount(dest, msRdonly)
			}
		case "bindfs", "bindfs-ro":
			var dest, src string
			if dest, err = w.next(); err != nil {
				break
			}
			if src, err = w.next(); err != nil {
				break
			}
			o.binds = append(o.binds, bindEntry{Dest: dest, Src: src})
			o.bindDest[dest] = true
			if w.opt == "bindfs-ro" {
				o.addRemount(dest, msRdonly)
			}
		case "tmpfs":
			var path string
			var size int64
			if path, err = w.next(); err != nil {
				break
			}
			if size, err = w.nextBytes(); err != nil {
				break
			}
			o.tmpfs = append(o.tmpfs, tmpfsEntry{Path: path, Size: size})
		case "cgroup-option":
			var subsys, key, value string
			if subsys, err = w.next(); err != nil {
				break
			}
			if key, err = w.next(); err != nil {
				break
			}
			if value, err = w.next(); err != nil {
				break
			}
			o.cgOptions = append(o.cgOptions, cgroupOption{Subsys: subsys, Key: key, Value: value})
		case "env":
			var k, v string
			if k, err = w.next(); err != nil {
				break
			}
			if v, err = w.next(); err != nil {
				break
			}
			o.envs = append(o.envs, envEntry{Key: k, Value: v})
		case "fd":
			var v int64
			if v, err = w.nextInt(); err == nil {
				o.keepFds = append(o.keepFds, int(v))
			}
		case "cmd":
			var c string
			if c, err = w.next(); err == nil {
				o.commands = append(o.commands, c)
			}
		case "config":
			// already applied in the pre-pass
			_, err = w.next()
		case "debug":
			o.debug = true
		case "status":
			o.status = true
		case "help":
			printHelp("")
			os.Exit(0)
		case "help-syscalls":
			printHelp("syscalls")
			os.Exit(0)
		case "version":
			printVersion()
			os.Exit(0)
		default:
			return nil, fmt.Errorf("unknown option: `--%s`\nUse --help for information", w.opt)
		}
		if err != nil {
			return nil, err
		}
	}
	o.command = w.args[w.pos:]
	return o, nil
}

func (o *options) addRemount(dest string, flags uintptr) {
	for i := range o.remounts {
		if o.remounts[i].Dest == dest {
			o.remounts[i].Flags |= flags
			return
		}
	}
	o.remounts = append(o.remounts, remountEntry{Dest: dest, Flags: flags})
}
