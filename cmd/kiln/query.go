package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listState string

func init() {
	listCmd.Flags().StringVar(&listState, "state", "", "only list domains in this state (e.g. Running, Defined-Stopped)")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List domains",
	Long: `List active and inactive domains with their UUID and state.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   One YAML document per domain
  -o json   JSON array`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		domains, err := cfg.NewClient().List(cmd.Context(), listState)
		if err != nil {
			return err
		}

		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		out, err := formatter.FormatDomainList(domains)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

var stateCmd = &cobra.Command{
	Use:   "state <name>",
	Short: "Show the state of a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := cfg.NewClient().State(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		out, err := formatter.FormatDomain(info)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}
