package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/slotforge/slotforge/internal/model"
)

func newBlueprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blueprint",
		Short: "Manage blueprints",
	}
	cmd.AddCommand(
		newBlueprintListCmd(),
		newBlueprintShowCmd(),
		newBlueprintSaveCmd(),
		newBlueprintApplyCmd(),
	)
	return cmd
}

func newBlueprintListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List blueprint names",
		RunE: func(cmd *cobra.Command, args []string) error {
			var names []string
			if err := apiCall("GET", "/blueprints", nil, &names); err != nil {
				return err
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
}

func newBlueprintShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a blueprint's YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var bp model.Blueprint
			if err := apiCall("GET", "/blueprints/"+args[0], nil, &bp); err != nil {
				return err
			}
			data, err := yaml.Marshal(bp)
			if err != nil {
				return err
			}
			os.Stdout.Write(data)
			return nil
		},
	}
}

func newBlueprintSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <file.yaml>",
		Short: "Save a blueprint from a local YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var bp model.Blueprint
			if err := yaml.Unmarshal(data, &bp); err != nil {
				return err
			}

			// round-trip through JSON since apiCall speaks JSON to the daemon
			raw, _ := json.Marshal(bp)
			var decoded model.Blueprint
			json.Unmarshal(raw, &decoded)

			return apiCall("POST", "/blueprints", decoded, nil)
		},
	}
}

func newBlueprintApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <name>",
		Short: "Create every slot a blueprint describes, starting stacks and agents where it says to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Failures []struct {
					Slot  string `json:"slot"`
					Error string `json:"error"`
				} `json:"failures"`
			}
			if err := apiCall("POST", "/blueprints/"+args[0]+"/apply", nil, &result); err != nil {
				return err
			}
			for _, f := range result.Failures {
				fmt.Printf("%s: %s\n", f.Slot, f.Error)
			}
			if len(result.Failures) > 0 {
				return fmt.Errorf("%d slot(s) failed", len(result.Failures))
			}
			fmt.Println("blueprint applied")
			return nil
		},
	}
}
