package main

import (
	"flag"
	"fmt"

	"github.com/slotforge/slotforge/internal/agenthost"
)

// runHostAgent parses the flags the agent client passes when relaunching
// this binary in --host-agent mode and runs the PTY host loop. It never
// returns until the hosted command exits.
func runHostAgent(args []string) error {
	fs := flag.NewFlagSet("host-agent", flag.ContinueOnError)
	hostAgent := fs.Bool("host-agent", false, "")
	slot := fs.String("slot", "", "slot name")
	workdir := fs.String("workdir", "", "working directory for the hosted command")
	logFile := fs.String("log-file", "", "path to append PTY output to")
	slotsDir := fs.String("slots-dir", "", "slots directory (for the lease file)")

	// Everything after a bare "--" is the command to host.
	var command []string
	for i, a := range args {
		if a == "--" {
			command = args[i+1:]
			args = args[:i]
			break
		}
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	_ = hostAgent

	if *slot == "" || *workdir == "" || *slotsDir == "" || len(command) == 0 {
		return fmt.Errorf("host-agent: --slot, --workdir, --slots-dir and a command after -- are required")
	}

	return agenthost.Run(*slot, command, *workdir, *logFile, *slotsDir)
}
