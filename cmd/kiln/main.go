package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jbweber/kiln/internal/config"
	kilnlog "github.com/jbweber/kiln/internal/log"
	"github.com/jbweber/kiln/internal/output"
)

var (
	version = "dev"
	commit  = "unknown"
)

var (
	// cfgFile is the --config flag
	cfgFile string
	// outputFormat is the -o flag shared by every command that prints results
	outputFormat string
	noHeaders    bool

	// v holds file, environment and flag settings; cfg is decoded from it
	// before each command runs
	v   = config.New()
	cfg *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kiln",
	Short: "Kiln - libvirt domain lifecycle tool",
	Long: `Kiln reconciles libvirt domains toward a requested lifecycle state.

It defines, updates, starts, stops and deletes domains from their XML
descriptors, waits for them to converge, and can watch their state over time.

Settings are read from $HOME/.kiln.yaml (or --config), KILN_* environment
variables and flags, in increasing order of precedence.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		used, err := config.ReadFile(v, cfgFile)
		if err != nil {
			return err
		}

		cfg, err = config.Load(v)
		if err != nil {
			return err
		}

		logCfg := cfg.LoggerConfig()
		logCfg.Output = cmd.ErrOrStderr()
		kilnlog.Init(logCfg)

		if used != "" {
			kilnlog.Logger.Debug().Str("file", used).Msg("using config file")
		}

		return output.ValidateFormat(outputFormat)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.kiln.yaml)")
	flags.StringP("connect", "c", "", "libvirt connection URI (default qemu:///system)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.Bool("log-json", false, "log in JSON instead of console format")
	flags.Duration("connect-timeout", 0, "timeout for dialing the hypervisor")
	flags.StringVarP(&outputFormat, "output", "o", string(output.FormatTable), "output format: table, yaml, json")
	flags.BoolVar(&noHeaders, "no-headers", false, "omit table headers")

	bindFlag(rootCmd, "uri", "connect")
	bindFlag(rootCmd, "log.level", "log-level")
	bindFlag(rootCmd, "log.json", "log-json")
	bindFlag(rootCmd, "connect.timeout", "connect-timeout")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(testConnCmd)
	rootCmd.AddCommand(configCmd)
}

// bindFlag binds a flag of cmd to a viper key. A flag only takes precedence
// once it has been set on the command line.
func bindFlag(cmd *cobra.Command, key, flag string) {
	f := cmd.PersistentFlags().Lookup(flag)
	if f == nil {
		f = cmd.Flags().Lookup(flag)
	}
	_ = v.BindPFlag(key, f)
}

// newFormatter builds the formatter selected with -o.
func newFormatter() (output.Formatter, error) {
	return output.NewFormatter(output.Options{
		Format:    output.Format(outputFormat),
		NoHeaders: noHeaders,
	})
}

// printResult formats an operation result to w.
func printResult(w io.Writer, result any) error {
	formatter, err := newFormatter()
	if err != nil {
		return err
	}

	out, err := formatter.FormatResult(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	_, err = fmt.Fprint(w, out)
	return err
}
