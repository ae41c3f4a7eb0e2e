// Package output provides formatters for displaying kiln operation results,
// domain listings and watcher events in various formats (table, YAML, JSON).
package output

import (
	"fmt"

	"github.com/jbweber/kiln/internal/vm"
	"github.com/jbweber/kiln/internal/watch"
)

// Format represents an output format type.
type Format string

const (
	// FormatTable is a human-readable table format.
	FormatTable Format = "table"

	// FormatYAML is a YAML format for scripting and review.
	FormatYAML Format = "yaml"

	// FormatJSON is a JSON format for machine consumption.
	FormatJSON Format = "json"
)

// Formatter formats kiln results for output.
type Formatter interface {
	// FormatResult formats the result of a lifecycle operation:
	// *vm.CreateResult, *vm.UpdateResult, *vm.PowerResult or *vm.DeleteResult.
	FormatResult(result any) (string, error)

	// FormatDomain formats a single domain.
	FormatDomain(d *vm.DomainInfo) (string, error)

	// FormatDomainList formats a list of domains.
	FormatDomainList(ds []vm.DomainInfo) (string, error)

	// FormatEvents formats watcher events.
	FormatEvents(evs []watch.Event) (string, error)
}

// Options contains options for formatting output.
type Options struct {
	// Format specifies the output format.
	Format Format

	// NoHeaders omits headers in table format.
	NoHeaders bool
}

// NewFormatter creates a new Formatter based on the specified format.
func NewFormatter(opts Options) (Formatter, error) {
	switch opts.Format {
	case FormatTable:
		return &TableFormatter{NoHeaders: opts.NoHeaders}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, yaml, json)", opts.Format)
	}
}

// ValidateFormat checks if a format string is valid.
func ValidateFormat(format string) error {
	f := Format(format)
	switch f {
	case FormatTable, FormatYAML, FormatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid formats: table, yaml, json)", format)
	}
}
