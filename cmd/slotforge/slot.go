package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/slotforge/slotforge/internal/model"
)

func newSlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Manage slots",
	}
	cmd.AddCommand(
		newSlotCreateCmd(),
		newSlotListCmd(),
		newSlotShowCmd(),
		newSlotStackCmd("start", "stack/start"),
		newSlotStackCmd("stop", "stack/stop"),
		newSlotRebaseCmd(),
		newSlotPushCmd(),
		newSlotDestroyCmd(),
	)
	return cmd
}

func newSlotCreateCmd() *cobra.Command {
	var branch, prompt string

	cmd := &cobra.Command{
		Use:   "create <name> <source>",
		Short: "Create a new slot from a repository source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var slot model.Slot
			err := apiCall("POST", "/slots", map[string]string{
				"name":   args[0],
				"source": args[1],
				"branch": branch,
				"prompt": prompt,
			}, &slot)
			if err != nil {
				return err
			}
			fmt.Printf("created slot %q on branch %q\n", slot.Name, slot.Branch)
			return nil
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "branch to check out (defaults to the source's current branch)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt to auto-spawn an agent with after creation")
	return cmd
}

func newSlotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			var slots []model.Slot
			if err := apiCall("GET", "/slots", nil, &slots); err != nil {
				return err
			}
			printSlotTable(slots)
			return nil
		},
	}
}

func printSlotTable(slots []model.Slot) {
	colorize := isatty.IsTerminal(os.Stdout.Fd())

	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tBRANCH\tSTATUS\tAGENT\tCREATED")
	for _, s := range slots {
		status := string(s.Status)
		if colorize {
			status = colorForSlotStatus(s.Status) + status + colorReset
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.Name, s.Branch, status, s.AgentStatus, humanize.Time(s.CreatedAt))
	}
	tw.Flush()
}

const colorReset = "\x1b[0m"

func colorForSlotStatus(status model.SlotStatus) string {
	switch status {
	case model.SlotRunning:
		return "\x1b[32m"
	case model.SlotError:
		return "\x1b[31m"
	case model.SlotStarting, model.SlotStopping, model.SlotProvisioning:
		return "\x1b[33m"
	default:
		return ""
	}
}

func newSlotShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one slot's full record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var slot model.Slot
			if err := apiCall("GET", "/slots/"+args[0], nil, &slot); err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(slot)
		},
	}
}

func newSlotStackCmd(use, endpoint string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: "Service-stack " + use,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return apiCall("POST", "/slots/"+args[0]+"/"+endpoint, nil, nil)
		},
	}
}

func newSlotRebaseCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "rebase <name>",
		Short: "Rebase a slot's branch onto its upstream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return apiCall("POST", "/slots/"+args[0]+"/rebase", map[string]string{"targetBranch": target}, nil)
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "branch to rebase onto (defaults to the slot's recorded default branch)")
	return cmd
}

func newSlotPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push <name>",
		Short: "Push a slot's current branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return apiCall("POST", "/slots/"+args[0]+"/push", nil, nil)
		},
	}
}

func newSlotDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <name>",
		Short: "Tear down a slot and delete its worktree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return apiCall("POST", "/slots/"+args[0]+"/destroy", nil, nil)
		},
	}
}
