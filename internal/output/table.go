package output

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jbweber/kiln/internal/vm"
	"github.com/jbweber/kiln/internal/watch"
)

// TableFormatter formats results as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool

	// now is used for event ages; nil means time.Now.
	now func() time.Time
}

// FormatResult formats an operation result as a single-row table.
func (f *TableFormatter) FormatResult(result any) (string, error) {
	switch r := result.(type) {
	case *vm.CreateResult:
		return f.table([]string{"NAME", "UUID", "STATE", "DEFINED"},
			[]string{r.Name, dash(r.UUID), r.State.String(), yesNo(r.Defined)}), nil
	case *vm.UpdateResult:
		return f.table([]string{"NAME", "UUID", "STATE", "RESTARTED"},
			[]string{r.Name, dash(r.UUID), r.State.String(), yesNo(r.WasRestarted)}), nil
	case *vm.PowerResult:
		return f.table([]string{"NAME", "STATE"},
			[]string{r.Name, r.State.String()}), nil
	case *vm.DeleteResult:
		volumes := "-"
		if len(r.DeletedVolumes) > 0 {
			volumes = strings.Join(r.DeletedVolumes, ",")
		}
		return f.table([]string{"NAME", "DELETED", "VOLUMES"},
			[]string{r.Name, yesNo(r.Success), volumes}), nil
	default:
		return "", fmt.Errorf("unsupported result type %T", result)
	}
}

// FormatDomain formats a single domain as a table row.
func (f *TableFormatter) FormatDomain(d *vm.DomainInfo) (string, error) {
	return f.FormatDomainList([]vm.DomainInfo{*d})
}

// FormatDomainList formats domains as a table.
func (f *TableFormatter) FormatDomainList(ds []vm.DomainInfo) (string, error) {
	if len(ds) == 0 {
		return "No domains found\n", nil
	}

	rows := make([][]string, 0, len(ds))
	for _, d := range ds {
		rows = append(rows, []string{d.Name, dash(d.UUID), d.State.String()})
	}

	return f.table([]string{"NAME", "UUID", "STATE"}, rows...), nil
}

// FormatEvents formats events as a table, newest last.
func (f *TableFormatter) FormatEvents(evs []watch.Event) (string, error) {
	if len(evs) == 0 {
		return "No events found\n", nil
	}

	now := time.Now
	if f.now != nil {
		now = f.now
	}

	rows := make([][]string, 0, len(evs))
	for _, ev := range evs {
		rows = append(rows, []string{
			ev.Name,
			ev.State.String(),
			ev.ObservedAt.Format(time.RFC3339),
			formatAge(now().Sub(ev.ObservedAt)),
		})
	}

	return f.table([]string{"NAME", "STATE", "OBSERVED", "AGE"}, rows...), nil
}

func (f *TableFormatter) table(header []string, rows ...[]string) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	// Write header unless NoHeaders is set
	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, strings.Join(header, "\t"))
	}
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	_ = w.Flush()
	return buf.String()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())

	// Less than 1 minute
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	// Less than 1 hour
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	// Less than 1 day
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	// Less than 1 week
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	// Less than ~2 months (8 weeks)
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	// More than 2 months, show in approximate years/days
	years := days / 365
	if years > 0 {
		return fmt.Sprintf("%dy", years)
	}

	return fmt.Sprintf("%dd", days)
}
