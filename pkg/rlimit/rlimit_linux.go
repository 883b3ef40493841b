package rlimit

import "golang.org/x/sys/unix"

const (
	unixRlimitRTPrio = unix.RLIMIT_RTPRIO
	unixRlimitNice   = unix.RLIMIT_NICE
	unixRlimitNProc  = unix.RLIMIT_NPROC
)
