// Package watch polls domains on a fixed interval and reports their state.
//
// Each tick reads every watched domain through a fresh StateReader call and
// hands the resulting Event to the configured sinks. A failed poll is logged
// and counted; it produces no event and never stops the watcher.
package watch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	kilnlog "github.com/jbweber/kiln/internal/log"
	"github.com/jbweber/kiln/internal/metrics"
	"github.com/jbweber/kiln/internal/status"
	"github.com/jbweber/kiln/internal/vm"
)

// DefaultInterval is the tick cadence when none is configured.
const DefaultInterval = time.Minute

// Event is one observation of a domain's state.
type Event struct {
	Name       string       `json:"name" yaml:"name"`
	UUID       string       `json:"uuid,omitempty" yaml:"uuid,omitempty"`
	State      status.State `json:"state" yaml:"state"`
	ObservedAt time.Time    `json:"observedAt" yaml:"observedAt"`
}

// StateReader reads a domain's current state. *vm.Client satisfies it; each
// call opens and closes its own connection.
type StateReader interface {
	State(ctx context.Context, name string) (*vm.DomainInfo, error)
}

// Sink receives events produced by a tick.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Emit(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Watcher polls a set of domains.
type Watcher struct {
	names    []string
	reader   StateReader
	sinks    []Sink
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
	states   []string
}

// New creates a Watcher for names. A non-positive interval uses
// DefaultInterval.
func New(reader StateReader, names []string, interval time.Duration, sinks ...Sink) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}

	all := status.All()
	states := make([]string, 0, len(all))
	for _, s := range all {
		states = append(states, s.String())
	}

	return &Watcher{
		names:    names,
		reader:   reader,
		sinks:    sinks,
		interval: interval,
		now:      time.Now,
		logger:   kilnlog.WithComponent("watch"),
		states:   states,
	}
}

// Interval returns the tick cadence.
func (w *Watcher) Interval() time.Duration {
	return w.interval
}

// Tick polls every watched domain once and returns the events produced.
// Domains that could not be read are absent from the result.
func (w *Watcher) Tick(ctx context.Context) []Event {
	events := make([]Event, 0, len(w.names))

	for _, name := range w.names {
		if ev, ok := w.poll(ctx, name); ok {
			events = append(events, ev)
		}
	}

	return events
}

func (w *Watcher) poll(ctx context.Context, name string) (Event, bool) {
	logger := kilnlog.WithDomain(w.logger, name)

	info, err := w.reader.State(ctx, name)
	if err != nil {
		logger.Error().Err(err).Msg("poll failed")
		metrics.WatchPollsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return Event{}, false
	}
	metrics.WatchPollsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	metrics.SetDomainState(name, info.State.String(), w.states)

	ev := Event{
		Name:       info.Name,
		UUID:       info.UUID,
		State:      info.State,
		ObservedAt: w.now().UTC(),
	}
	logger.Debug().Str("state", ev.State.String()).Msg("observed domain state")

	for _, s := range w.sinks {
		if err := s.Emit(ctx, ev); err != nil {
			logger.Warn().Err(err).Msg("failed to deliver event")
		}
	}

	return ev, true
}

// Run ticks immediately and then every interval until ctx is done. It
// always returns nil; individual poll failures are logged by Tick.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info().
		Strs("domains", w.names).
		Dur("interval", w.interval).
		Msg("watching domains")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Tick(ctx)
	for {
		select {
		case <-ticker.C:
			w.Tick(ctx)
		case <-ctx.Done():
			w.logger.Info().Msg("watcher stopped")
			return nil
		}
	}
}
