package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run an operation across every slot",
	}
	cmd.AddCommand(
		newBatchOpCmd("start-all", "stack/start every slot"),
		newBatchOpCmd("stop-all", "stack/stop every slot"),
		newBatchOpCmd("rebase-all", "rebase every slot onto its default branch"),
		newBatchOpCmd("push-all", "push every slot's current branch"),
		newBatchOpCmd("destroy-all", "tear down every slot"),
	)
	return cmd
}

type batchResult struct {
	Slot  string `json:"slot"`
	Error string `json:"error"`
}

type batchStatus struct {
	ID        string        `json:"id"`
	Operation string        `json:"operation"`
	Done      bool          `json:"done"`
	Results   []batchResult `json:"results"`
}

func newBatchOpCmd(operation, short string) *cobra.Command {
	return &cobra.Command{
		Use:   operation,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			var started struct {
				RunID string `json:"runId"`
			}
			if err := apiCall("POST", "/batch", map[string]string{"operation": operation}, &started); err != nil {
				return err
			}

			seen := 0
			for {
				var status batchStatus
				if err := apiCall("GET", "/batch/"+started.RunID, nil, &status); err != nil {
					return err
				}
				for _, r := range status.Results[seen:] {
					if r.Error != "" {
						fmt.Printf("%s: FAILED: %s\n", r.Slot, r.Error)
					} else {
						fmt.Printf("%s: ok\n", r.Slot)
					}
				}
				seen = len(status.Results)
				if status.Done {
					return nil
				}
				time.Sleep(500 * time.Millisecond)
			}
		},
	}
}
