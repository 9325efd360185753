// slotforge — a slot-based orchestrator for running several isolated
// copies of a repository's service stack and an agent side by side.
//
// Usage:
//
//	slotforge daemon [flags]             # start the orchestration daemon
//	slotforge slot create <name> <src>   # create a slot
//	slotforge slot start|stop <name>     # start/stop a slot's service stack
//	slotforge agent spawn|stop <name>    # spawn/stop a slot's agent
//	slotforge agent attach <name>        # stream a live agent session
//	slotforge blueprint list|show|apply  # blueprint operations
//	slotforge batch <operation>          # run an operation over every slot
//
// Build:
//
//	go build -o slotforge ./cmd/slotforge/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slotforge/slotforge/internal/slotlog"
)

// Version is injected at build time via -ldflags="-X main.Version=v1.0.0".
var Version = "dev"

func main() {
	if hostAgentMode(os.Args[1:]) {
		if err := runHostAgent(os.Args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	var jsonLogs bool

	root := &cobra.Command{
		Use:   "slotforge",
		Short: "Run several isolated slots of a repository's service stack and agent side by side",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slotlog.Init(slotlog.Config{
				Level:      slotlog.Level(logLevel),
				JSONOutput: jsonLogs,
			})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit logs as JSON")

	root.AddCommand(
		newDaemonCmd(),
		newSlotCmd(),
		newAgentCmd(),
		newBlueprintCmd(),
		newBatchCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(Version)
		},
	}
}

// hostAgentMode detects the --host-agent process-mode switch before
// cobra ever parses args, since that mode is not a normal subcommand:
// it's how the daemon/CLI relaunches this same binary as a detached
// agent host.
func hostAgentMode(args []string) bool {
	for _, a := range args {
		if a == "--host-agent" {
			return true
		}
	}
	return false
}
