package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	kilnlibvirt "github.com/jbweber/kiln/internal/libvirt"
)

var testConnCmd = &cobra.Command{
	Use:   "test-conn",
	Short: "Test libvirt connection",
	Long:  `Test connectivity to the libvirt daemon and display version information.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Testing connection to %s...\n", cfg.URI)

		return kilnlibvirt.WithConnection(cmd.Context(), cfg.URI, cfg.ConnectOptions(), func(c *kilnlibvirt.Client) error {
			_, _ = fmt.Fprintf(out, "✓ Connected via %s transport\n", c.Endpoint().Transport)

			version, err := c.Ping()
			if err != nil {
				return fmt.Errorf("connection test failed: %w", err)
			}
			_, _ = fmt.Fprintf(out, "✓ Libvirt version: %s\n", kilnlibvirt.FormatVersion(version))

			hostname, err := c.Libvirt().ConnectGetHostname()
			if err != nil {
				return fmt.Errorf("failed to get hostname: %w", err)
			}
			_, _ = fmt.Fprintf(out, "✓ Hypervisor hostname: %s\n", hostname)

			uri, err := c.Libvirt().ConnectGetUri()
			if err != nil {
				return fmt.Errorf("failed to get connection URI: %w", err)
			}
			_, _ = fmt.Fprintf(out, "✓ Connection URI: %s\n", uri)

			_, _ = fmt.Fprintln(out, "\nConnection test successful!")
			return nil
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal configuration: %w", err)
		}

		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}
