package supervisor

import (
	"os"
	"os/signal"
	"syscall"
)

// setupSignals ignores SIGPIPE and SIGALRM so a consumer of the status
// channel may close its end early, and routes the fatal set into a channel
// the loop polls each iteration.
func setupSignals() chan os.Signal {
	signal.Ignore(syscall.SIGPIPE, syscall.SIGALRM)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch,
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT,
		syscall.SIGQUIT, syscall.SIGFPE, syscall.SIGILL, syscall.SIGTRAP)
	return ch
}
