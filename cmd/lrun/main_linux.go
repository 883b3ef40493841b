package main

import (
	"fmt"
	"os"

	"github.com/acmoj/lrun/supervisor"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printHelp("")
		return 0
	}

	o, err := parseOptions(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if errs := checkConfig(o); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "%s\n\n", e)
		}
		fmt.Fprintln(os.Stderr, "Please fix these errors and try again.")
		return 1
	}

	if err := checkEnvironment(o); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log := newLogger(o.debug || o.status)
	defer log.Sync()

	c, err := buildConfig(o, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	return supervisor.Run(c)
}
