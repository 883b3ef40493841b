package supervisor

import (
	"errors"
	"fmt"
	"math"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/acmoj/lrun/pkg/cgroup"
	"github.com/acmoj/lrun/pkg/forkexec"
	"github.com/acmoj/lrun/pkg/procfs"
)

// Supervisor exit codes beyond the command's configuration errors.
const (
	ExitOK           = 0
	ExitMemorySetup  = 2
	ExitCleanup      = 4
	ExitStatusFd     = 5
	ExitWaitFailed   = 6
	ExitCgroupOption = 7
	ExitSpawn        = 10
)

// accounting is the slice of the cgroup manager the loop samples; a small
// interface so tests can substitute a double.
type accounting interface {
	CPUUsage() (float64, error)
	MemoryPeak() (uint64, error)
	UpdateOutputCount()
	OutputUsage() uint64
	Empty() bool
}

// Run executes the configured command under supervision and returns the
// process exit code. The control group is torn down on every path.
func Run(c *Config) int {
	log := c.Log

	name := c.CgroupName
	ownership := cgroup.Borrowed
	if name == "" {
		name = fmt.Sprintf("lrun%d", os.Getpid())
		ownership = cgroup.Owned
	}
	log.Info("creating cgroup", zap.String("name", name))

	cg, err := cgroup.Create(name, ownership)
	if err != nil {
		log.Error("can not create cgroup", zap.String("name", name), zap.Error(err))
		return 1
	}

	cleanExit := func(code int) int {
		log.Info("cleaning and exiting", zap.Int("code", code))
		if err := cg.Cleanup(); err != nil {
			log.Warn("can not destroy cgroup", zap.Error(err))
		}
		return code
	}

	// serialize supervisors sharing a cgname
	lock, err := cgroup.NewFileLock(cg.SubsysPath())
	if err != nil {
		log.Warn("can not open cgroup lock", zap.Error(err))
	} else {
		if err := lock.Lock(); err != nil {
			log.Warn("can not lock cgroup", zap.Error(err))
		}
		defer lock.Unlock()
	}

	if code := setupCgroup(c, cg); code != ExitOK {
		return cleanExit(code)
	}

	// fd 3 must not leak into the child
	if _, err := unix.FcntlInt(3, unix.F_SETFD, unix.FD_CLOEXEC); err != nil && err != unix.EBADF {
		log.Error("can not set FD_CLOEXEC on fd 3", zap.Error(err))
		return cleanExit(ExitStatusFd)
	}

	rl := c.RLimits
	if c.Limits.CPUTime > 0 {
		// rlimit backstop in case the sampling loop is starved
		rl.CPU = uint64(math.Ceil(c.Limits.CPUTime))
	}

	runner := &forkexec.Runner{
		Args:       c.Command,
		Env:        c.Env,
		CloneFlags: c.CloneFlags,
		HostName:   c.HostName,
		DomainName: c.DomainName,
		KeepFds:    c.KeepFds,
		Steps:      c.Steps,
		Commands:   c.Commands,
		Umask:      c.Umask,
		Credential: &syscall.Credential{Uid: c.UID, Gid: c.GID},
		RLimits:    rl.PrepareRLimit(),
		Nice:       c.Nice,
		NoNewPrivs: c.NoNewPrivs,
		Seccomp:    c.Seccomp,
		SyncFunc:   cg.AddProcess,
	}

	pid, err := runner.Start()
	if err != nil {
		log.Error("can not spawn child", zap.Error(err))
		var ce forkexec.ChildError
		if errors.As(err, &ce) {
			return cleanExit(ce.ExitCode())
		}
		return cleanExit(ExitSpawn)
	}

	sig := setupSignals()
	// make the supervisor scheduled ahead of the child tree
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, -5); err != nil {
		log.Warn("can not renice", zap.Error(err))
	}

	log.Info("entering main loop", zap.Int("pid", pid))
	start := time.Now()
	res := c.loop(cg, pid, start, sig)
	if res.fatal != 0 {
		return cleanExit(res.fatal)
	}

	memory, _ := cg.MemoryPeak()
	cpuTime, _ := cg.CPUUsage()
	realTime := time.Since(start).Seconds()
	rep := collectReport(res.stat, res.exceed, memory, cpuTime, realTime, c.Limits)

	if f := os.NewFile(3, "status"); f != nil {
		rep.WriteTo(f)
		// close early so the status consumer can move on before teardown
		f.Close()
	}

	code := ExitOK
	if c.PassExitcode {
		code = rep.ExitCode
	}
	return cleanExit(code)
}

// setupCgroup applies device, memory and user supplied cgroup settings and
// resets the usage counters.
func setupCgroup(c *Config, cg *cgroup.Cgroup) int {
	log := c.Log
	if c.BasicDevices {
		if err := cg.LimitDevices(); err != nil {
			log.Error("can not enable devices whitelist", zap.Error(err))
			return 1
		}
	}
	if c.Limits.Memory > 0 {
		if err := cg.SetMemoryLimit(c.Limits.Memory); err != nil {
			log.Error("can not set memory limit", zap.Error(err))
			return ExitMemorySetup
		}
	}
	for _, o := range c.CgroupOptions {
		if err := cg.Set(o.Subsys, o.Key, o.Value); err != nil {
			log.Error("can not set cgroup option",
				zap.String("subsys", o.Subsys), zap.String("key", o.Key), zap.Error(err))
			return ExitCgroupOption
		}
	}
	// the group may be reused via cgname: empty it and reset counters
	cg.KillAll()
	if err := cg.ResetUsages(); err != nil {
		log.Error("can not reset cpu time / memory usage counter", zap.Error(err))
		return ExitCleanup
	}
	return ExitOK
}

type loopResult struct {
	stat   syscall.WaitStatus
	exceed Exceed
	fatal  int
}

// loop samples the child against the limits each interval. The sample order
// (signal, reap, cpu, real time, memory, zombie check, output, empty) is
// fixed so the attributed limit is deterministic.
func (c *Config) loop(cg accounting, pid int, start time.Time, sig <-chan os.Signal) loopResult {
	var (
		stat     syscall.WaitStatus
		exceed   Exceed
		deadline time.Time
		interval = c.Interval()
	)
	if c.Limits.RealTime > 0 {
		deadline = start.Add(time.Duration(c.Limits.RealTime * float64(time.Second)))
	}

	for running := true; running; {
		select {
		case s := <-sig:
			c.Log.Warn("signal received, exiting", zap.Stringer("signal", s.(syscall.Signal)))
			return loopResult{fatal: ExitCleanup}
		default:
		}

		e, err := syscall.Wait4(pid, &stat, syscall.WNOHANG, nil)
		switch {
		case e == pid && (stat.Exited() || stat.Signaled()):
			c.Log.Debug("child exited")
			return loopResult{stat: stat, exceed: exceed}
		case err == syscall.ECHILD:
			// strangely, this happens at the beginning (?)
			time.Sleep(interval)
		}
		stat = 0

		if c.Limits.CPUTime > 0 {
			if u, err := cg.CPUUsage(); err == nil && u >= c.Limits.CPUTime {
				exceed = ExceedCPUTime
				break
			}
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			exceed = ExceedRealTime
			break
		}

		if c.Limits.Memory > 0 {
			if m, err := cg.MemoryPeak(); err == nil && m >= c.Limits.Memory {
				exceed = ExceedMemory
				break
			}
		}

		// in case SIGCHLD is unreliable, spot the zombie by its state
		if procfs.ProcessState(pid) == 'Z' {
			c.Log.Debug("child becomes zombie")
			running = false
			if _, err := syscall.Wait4(pid, &stat, syscall.WNOHANG, nil); err != nil {
				return loopResult{fatal: ExitWaitFailed}
			}
		}

		if c.Limits.Output > 0 {
			cg.UpdateOutputCount()
			if cg.OutputUsage() > c.Limits.Output {
				exceed = ExceedOutput
				break
			}
		}

		if c.Status {
			c.logStatus(cg, start)
		}

		if cg.Empty() {
			c.Log.Debug("no process remaining")
			running = false
		}

		if running {
			time.Sleep(interval)
		}
	}
	return loopResult{stat: stat, exceed: exceed}
}

func (c *Config) logStatus(cg accounting, start time.Time) {
	cpu, _ := cg.CPUUsage()
	mem, _ := cg.MemoryPeak()
	c.Log.Debug("status",
		zap.Float64("cpu", cpu),
		zap.Float64("real", time.Since(start).Seconds()),
		zap.Uint64("memory", mem),
		zap.Uint64("output", cg.OutputUsage()))
}
