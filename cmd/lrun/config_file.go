package main

import (
	"fmt"
	"os"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// fileConfig holds the scalar defaults a --config YAML file may provide.
// Command line options always override it.
type fileConfig struct {
	MaxCPUTime     *float64 `yaml:"max-cpu-time"`
	MaxRealTime    *float64 `yaml:"max-real-time"`
	MaxMemory      *string  `yaml:"max-memory"`
	MaxOutput      *string  `yaml:"max-output"`
	MaxNProcess    *uint64  `yaml:"max-nprocess"`
	MaxRTPrio      *uint64  `yaml:"max-rtprio"`
	MaxNFile       *uint64  `yaml:"max-nfile"`
	MaxStack       *string  `yaml:"max-stack"`
	IsolateProcess *bool    `yaml:"isolate-process"`
	BasicDevices   *bool    `yaml:"basic-devices"`
	RemountDev     *bool    `yaml:"remount-dev"`
	ResetEnv       *bool    `yaml:"reset-env"`
	Network        *bool    `yaml:"network"`
	PassExitcode   *bool    `yaml:"pass-exitcode"`
	NoNewPrivs     *bool    `yaml:"no-new-privs"`
	Chroot         *string  `yaml:"chroot"`
	Chdir          *string  `yaml:"chdir"`
	Nice           *int64   `yaml:"nice"`
	Umask          *int64   `yaml:"umask"`
	UID            *int64   `yaml:"uid"`
	GID            *int64   `yaml:"gid"`
	Interval       *float64 `yaml:"interval"`
	Cgname         *string  `yaml:"cgname"`
	Hostname       *string  `yaml:"hostname"`
	Domainname     *string  `yaml:"domainname"`
	Syscalls       *string  `yaml:"syscalls"`
}

// loadDefaults merges a YAML defaults file into the option set.
func loadDefaults(path string, o *options) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}

	bytesOf := func(s string) (int64, error) {
		v, err := units.RAMInBytes(s)
		if err != nil {
			return 0, fmt.Errorf("config %s: bad size %q", path, s)
		}
		return v, nil
	}

	if fc.MaxCPUTime != nil {
		o.cpuTimeLimit = *fc.MaxCPUTime
	}
	if fc.MaxRealTime != nil {
		o.realTimeLimit = *fc.MaxRealTime
	}
	if fc.MaxMemory != nil {
		if o.memoryLimit, err = bytesOf(*fc.MaxMemory); err != nil {
			return err
		}
	}
	if fc.MaxOutput != nil {
		if o.outputLimit, err = bytesOf(*fc.MaxOutput); err != nil {
			return err
		}
	}
	if fc.MaxStack != nil {
		if o.maxStack, err = bytesOf(*fc.MaxStack); err != nil {
			return err
		}
	}
	if fc.MaxNProcess != nil {
		o.maxNProc = *fc.MaxNProcess
	}
	if fc.MaxRTPrio != nil {
		o.maxRTPrio = *fc.MaxRTPrio
	}
	if fc.MaxNFile != nil {
		o.maxNoFile = *fc.MaxNFile
	}
	if fc.IsolateProcess != nil {
		o.isolateProcess = *fc.IsolateProcess
	}
	if fc.BasicDevices != nil {
		o.basicDevices = *fc.BasicDevices
	}
	if fc.RemountDev != nil {
		o.remountDev = *fc.RemountDev
	}
	if fc.ResetEnv != nil {
		o.resetEnv = *fc.ResetEnv
	}
	if fc.Network != nil {
		o.network = *fc.Network
	}
	if fc.PassExitcode != nil {
		o.passExitcode = *fc.PassExitcode
	}
	if fc.NoNewPrivs != nil {
		o.noNewPrivs = *fc.NoNewPrivs
	}
	if fc.Chroot != nil {
		o.chroot = *fc.Chroot
	}
	if fc.Chdir != nil {
		o.chdir = *fc.Chdir
	}
	if fc.Nice != nil {
		o.nice = *fc.Nice
	}
	if fc.Umask != nil {
		o.umask = *fc.Umask
	}
	if fc.UID != nil {
		o.uid = *fc.UID
	}
	if fc.GID != nil {
		o.gid = *fc.GID
	}
	if fc.Interval != nil && *fc.Interval > 0 {
		o.interval = *fc.Interval
	}
	if fc.Cgname != nil {
		o.cgname = *fc.Cgname
	}
	if fc.Hostname != nil {
		o.hostname = *fc.Hostname
	}
	if fc.Domainname != nil {
		o.domainname = *fc.Domainname
	}
	if fc.Syscalls != nil {
		o.syscalls = *fc.Syscalls
		o.syscallsSet = true
	}
	return nil
}
