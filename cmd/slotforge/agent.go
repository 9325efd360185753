package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/slotforge/slotforge/internal/agentclient"
	"github.com/slotforge/slotforge/internal/agenthost"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage slot agents",
	}
	cmd.AddCommand(
		newAgentSpawnCmd(),
		newAgentStopCmd(),
		newAgentAttachCmd(),
	)
	return cmd
}

func newAgentSpawnCmd() *cobra.Command {
	var prompt, allowedTools string
	var maxTurns int

	cmd := &cobra.Command{
		Use:   "spawn <name>",
		Short: "Spawn an agent in a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return apiCall("POST", "/slots/"+args[0]+"/agent/spawn", map[string]any{
				"prompt":       prompt,
				"allowedTools": allowedTools,
				"maxTurns":     maxTurns,
			}, nil)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "initial prompt for the agent")
	cmd.Flags().StringVar(&allowedTools, "allowed-tools", "", "comma-separated tool allowlist")
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "maximum agent turns (0 = unlimited)")
	return cmd
}

func newAgentStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop a slot's agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return apiCall("POST", "/slots/"+args[0]+"/agent/stop", nil, nil)
		},
	}
}

// newAgentAttachCmd is the one CLI path that bypasses the JSON API: it
// dials the agent host's TCP port directly and pumps raw PTY bytes
// between it and the local terminal, which isn't something a JSON RPC
// can express.
func newAgentAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <name>",
		Short: "Attach to a slot's live agent session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return attachAgent(args[0])
		},
	}
}

// detachKey is Ctrl-]: reading it from stdin ends the attach session.
const detachKey = 0x1d

func attachAgent(slotName string) error {
	slotsDir := defaultSlotsDir()

	if !agentclient.IsRunning(slotName, slotsDir) {
		return fmt.Errorf("no running agent for slot %q", slotName)
	}

	conn, err := agentclient.Connect(slotName, slotsDir)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Fprintf(os.Stderr, "attached to %s, press Ctrl-] to detach\n", slotName)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			ch, payload, err := conn.ReadFrame()
			if err != nil {
				return
			}
			switch ch {
			case agenthost.ChannelPTYOutput:
				os.Stdout.Write(payload)
			case agenthost.ChannelControl:
				// control frames (the exit notification) are not parsed;
				// the loop ends when the host closes the connection
			}
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if i := bytes.IndexByte(buf[:n], detachKey); i >= 0 {
			if i > 0 {
				conn.SendInput(buf[:i])
			}
			return nil
		}
		if n > 0 {
			if sendErr := conn.SendInput(buf[:n]); sendErr != nil {
				break
			}
		}
		if err != nil {
			if err != io.EOF {
				return err
			}
			break
		}
	}

	<-done
	return nil
}
