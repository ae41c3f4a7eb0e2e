package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbweber/kiln/internal/history"
	kilnlog "github.com/jbweber/kiln/internal/log"
	"github.com/jbweber/kiln/internal/metrics"
	"github.com/jbweber/kiln/internal/naming"
	"github.com/jbweber/kiln/internal/output"
	"github.com/jbweber/kiln/internal/watch"
)

var historyLimit int

func init() {
	watchCmd.Flags().Duration("interval", 0, "time between polls (default watch.interval, 1m)")
	watchCmd.Flags().String("history", "", "append events to this history database")
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")
	bindFlag(watchCmd, "watch.interval", "interval")
	bindFlag(watchCmd, "watch.history", "history")
	bindFlag(watchCmd, "watch.metrics_addr", "metrics-addr")

	historyCmd.Flags().String("history", "", "history database to read (default watch.history)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "show only the most recent events")
}

var watchCmd = &cobra.Command{
	Use:   "watch <name>...",
	Short: "Poll domains and report their state",
	Long: `Poll one or more domains on a fixed interval and print an event with
each domain's state. A failed poll is logged and retried on the next tick;
watch only exits when interrupted.

Events can also be journaled to a history database (--history) and domain
state exported as Prometheus metrics (--metrics-addr).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range args {
			if err := naming.ValidateDomainName(name); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		sinks := []watch.Sink{newPrintSink(cmd.OutOrStdout())}

		if cfg.Watch.History != "" {
			store, err := history.Open(cfg.Watch.History)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					kilnlog.Logger.Warn().Err(err).Msg("failed to close history database")
				}
			}()
			sinks = append(sinks, store)
		}

		if cfg.Watch.MetricsAddr != "" {
			stop := serveMetrics(ctx, cfg.Watch.MetricsAddr)
			defer stop()
		}

		return watch.New(cfg.NewClient(), args, cfg.Watch.Interval, sinks...).Run(ctx)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "Show recorded watch events for a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("history")
		if path == "" {
			path = cfg.Watch.History
		}
		if path == "" {
			return errors.New("no history database configured; set --history or watch.history")
		}

		store, err := history.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		events, err := store.List(args[0], historyLimit)
		if err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}

		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		out, err := formatter.FormatEvents(events)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}

		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

// printSink writes each event as it arrives. Tables get one header.
type printSink struct {
	mu      sync.Mutex
	w       io.Writer
	printed bool
}

func newPrintSink(w io.Writer) *printSink {
	return &printSink{w: w}
}

func (s *printSink) Emit(_ context.Context, ev watch.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := output.Options{Format: output.Format(outputFormat), NoHeaders: noHeaders || s.printed}
	formatter, err := output.NewFormatter(opts)
	if err != nil {
		return err
	}

	out, err := formatter.FormatEvents([]watch.Event{ev})
	if err != nil {
		return err
	}
	s.printed = true

	_, err = fmt.Fprint(s.w, out)
	return err
}

// serveMetrics exposes the Prometheus registry on addr until the returned
// function is called.
func serveMetrics(ctx context.Context, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger := kilnlog.WithComponent("metrics")
	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
