package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbweber/kiln/internal/loader"
	"github.com/jbweber/kiln/internal/vm"
)

var (
	createFile  string
	createName  string
	createStart bool

	updateFile    string
	updateName    string
	updateRestart bool

	startWait    bool
	startTimeout time.Duration

	stopForce   bool
	stopWait    bool
	stopTimeout time.Duration

	deleteStorage        bool
	deleteIgnoreNotFound bool
)

func init() {
	createCmd.Flags().StringVarP(&createFile, "file", "f", "", "domain XML descriptor, or - for stdin (required)")
	createCmd.Flags().StringVar(&createName, "name", "", "domain name (default is the descriptor's <name>)")
	createCmd.Flags().BoolVar(&createStart, "start", false, "start the domain after defining it")
	_ = createCmd.MarkFlagRequired("file")

	updateCmd.Flags().StringVarP(&updateFile, "file", "f", "", "domain XML descriptor, or - for stdin (required)")
	updateCmd.Flags().StringVar(&updateName, "name", "", "domain name (default is the descriptor's <name>)")
	updateCmd.Flags().BoolVar(&updateRestart, "restart", false, "restart an active domain so the new definition takes effect")
	_ = updateCmd.MarkFlagRequired("file")

	startCmd.Flags().BoolVar(&startWait, "wait", false, "wait until the domain is running")
	startCmd.Flags().DurationVar(&startTimeout, "timeout", 0, "how long to wait (default wait.timeout)")

	stopCmd.Flags().BoolVar(&stopForce, "force", false, "destroy the domain instead of asking the guest to shut down")
	stopCmd.Flags().BoolVar(&stopWait, "wait", false, "wait until the domain is stopped")
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 0, "how long to wait (default wait.timeout)")

	deleteCmd.Flags().BoolVar(&deleteStorage, "storage", false, "also delete the storage volumes the domain references")
	deleteCmd.Flags().BoolVar(&deleteIgnoreNotFound, "ignore-not-found", false, "succeed with deleted=no when the domain does not exist")
}

var createCmd = &cobra.Command{
	Use:   "create -f <domain.xml>",
	Short: "Define a domain if it does not exist",
	Long: `Define a domain from its libvirt XML descriptor.

An existing domain with the same name is left untouched; use update to apply
a changed descriptor. With --start the domain is booted unless it is already
running. Running create twice is safe.

Example:
  kiln create -f web-01.xml --start
  virt-install --print-xml ... | kiln create -f -`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loader.Load(createFile, cmd.InOrStdin())
		if err != nil {
			return err
		}

		result, err := cfg.NewClient().Create(cmd.Context(), createName, d.XML, createStart)
		if err != nil {
			return err
		}

		return printResult(cmd.OutOrStdout(), result)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update -f <domain.xml>",
	Short: "Redefine an existing domain",
	Long: `Redefine an existing domain from a changed XML descriptor.

The domain keeps its UUID: when the descriptor has no <uuid> element the
current one is inserted. Changes to an active domain take effect on its next
boot, or immediately with --restart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loader.Load(updateFile, cmd.InOrStdin())
		if err != nil {
			return err
		}

		result, err := cfg.NewClient().Update(cmd.Context(), updateName, d.XML, updateRestart)
		if err != nil {
			return err
		}

		return printResult(cmd.OutOrStdout(), result)
	},
}

var startCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Start a domain",
	Long: `Boot a defined domain. A running domain is left alone.

With --wait, kiln polls until the domain is running and fails if it settles
in Paused, Crashed or Defined-Stopped instead, or if the timeout expires.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := vm.WaitOptions{Wait: startWait, Timeout: startTimeout}

		result, err := cfg.NewClient().Start(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}

		return printResult(cmd.OutOrStdout(), result)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Stop a domain",
	Long: `Ask the guest to shut down, or destroy it with --force. A stopped
domain is left alone.

With --wait, kiln polls until the domain is stopped. A guest that ignores the
shutdown request runs into the timeout; retry with --force.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := vm.WaitOptions{Wait: stopWait, Timeout: stopTimeout}

		result, err := cfg.NewClient().Stop(cmd.Context(), args[0], stopForce, opts)
		if err != nil {
			return err
		}

		return printResult(cmd.OutOrStdout(), result)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a domain",
	Long: `Delete a domain definition.

This will:
- Delete the storage volumes its disks reference (with --storage)
- Destroy the domain if it is active
- Undefine the domain, including its NVRAM

Volumes that cannot be deleted are reported in the log and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := cfg.NewClient().Delete(cmd.Context(), args[0], deleteStorage, !deleteIgnoreNotFound)
		if err != nil {
			return err
		}

		if err := printResult(cmd.OutOrStdout(), result); err != nil {
			return err
		}
		if !result.Success {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "domain %s not found, nothing deleted\n", args[0])
		}
		return nil
	},
}
