package main

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"

	"github.com/acmoj/lrun/pkg/mount"
	"github.com/acmoj/lrun/pkg/rlimit"
	"github.com/acmoj/lrun/pkg/seccomp"
	"github.com/acmoj/lrun/supervisor"
)

const msRdonly = uintptr(unix.MS_RDONLY)

// newLogger builds the stderr console logger; --debug lowers the level.
func newLogger(debug bool) *zap.Logger {
	level := zap.WarnLevel
	if debug {
		level = zap.DebugLevel
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// composeEnv applies reset-env and the --env overrides to the inherited
// environment.
func composeEnv(reset bool, envs []envEntry) []string {
	var base []string
	if !reset {
		base = os.Environ()
	}
	for _, e := range envs {
		kv := e.Key + "=" + e.Value
		replaced := false
		for i, b := range base {
			if len(b) > len(e.Key) && b[:len(e.Key)] == e.Key && b[len(e.Key)] == '=' {
				base[i] = kv
				replaced = true
				break
			}
		}
		if !replaced {
			base = append(base, kv)
		}
	}
	return base
}

// buildConfig turns the checked options into the supervisor configuration.
func buildConfig(o *options, log *zap.Logger) (*supervisor.Config, error) {
	// the child cannot walk PATH between clone and exec
	argv0, err := exec.LookPath(o.command[0])
	if err != nil {
		return nil, fmt.Errorf("can not find executable: %w", err)
	}
	command := append([]string{argv0}, o.command[1:]...)

	mb := mount.NewBuilder()
	for _, b := range o.binds {
		mb.WithBind(b.Dest, b.Src)
	}
	for _, rm := range o.remounts {
		mb.WithRemount(rm.Dest, rm.Flags)
	}
	if o.chroot != "" {
		mb.WithChroot(o.chroot)
	}
	for _, tm := range o.tmpfs {
		mb.WithTmpfs(tm.Path, uint64(tm.Size))
	}
	if o.remountDev {
		mb.WithRemountDev()
	}
	if o.chdir != "" {
		mb.WithChdir(o.chdir)
	}
	steps, err := mb.Build()
	if err != nil {
		return nil, fmt.Errorf("can not build filesystem plan: %w", err)
	}
	log.Debug("filesystem plan", zap.Stringer("plan", mb))

	var cloneFlags uintptr
	if o.hostname != "" || o.domainname != "" {
		cloneFlags |= unix.CLONE_NEWUTS
	}
	if !o.network {
		cloneFlags |= unix.CLONE_NEWNET
	}
	if o.isolateProcess {
		cloneFlags |= unix.CLONE_NEWPID | unix.CLONE_NEWIPC
	}

	rl := rlimit.New()
	rl.NProc = o.maxNProc
	rl.RTPrio = o.maxRTPrio
	rl.NoFile = o.maxNoFile
	if o.maxStack > 0 {
		rl.Stack = uint64(o.maxStack)
	}
	if o.outputLimit > 0 {
		rl.FileSize = uint64(o.outputLimit)
	}
	if o.hasNice {
		rl.HasNice = true
		if o.minNice > 0 {
			rl.Nice = uint64(o.minNice)
		}
	}

	c := &supervisor.Config{
		Command:      command,
		Env:          composeEnv(o.resetEnv, o.envs),
		RLimits:      rl,
		CloneFlags:   cloneFlags,
		Steps:        steps,
		HostName:     o.hostname,
		DomainName:   o.domainname,
		UID:          uint32(o.uid),
		GID:          uint32(o.gid),
		Groups:       o.groups,
		Umask:        uint32(o.umask),
		Nice:         int(o.nice),
		KeepFds:      o.keepFds,
		Commands:     o.commands,
		NoNewPrivs:   o.noNewPrivs,
		CgroupName:   o.cgname,
		BasicDevices: o.basicDevices,
		PassExitcode: o.passExitcode,
		Status:       o.status,
		Log:          log,
	}

	c.Limits = supervisor.Limits{
		Interval: time.Duration(o.interval * float64(time.Second)),
	}
	if o.cpuTimeLimit > 0 {
		c.Limits.CPUTime = o.cpuTimeLimit
	}
	if o.realTimeLimit > 0 {
		c.Limits.RealTime = o.realTimeLimit
	}
	if o.memoryLimit > 0 {
		c.Limits.Memory = uint64(o.memoryLimit)
	}
	if o.outputLimit > 0 {
		c.Limits.Output = uint64(o.outputLimit)
	}

	for _, co := range o.cgOptions {
		c.CgroupOptions = append(c.CgroupOptions, supervisor.CgroupOption{
			Subsys: co.Subsys, Key: co.Key, Value: co.Value,
		})
	}

	if o.syscallsSet {
		prog, err := seccomp.Parse(o.syscalls)
		if err != nil {
			return nil, err
		}
		filter, err := prog.Compile()
		if err != nil {
			return nil, fmt.Errorf("can not compile syscall filter: %w", err)
		}
		c.Seccomp = filter.SockFprog()
	}

	return c, nil
}
