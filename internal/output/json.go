package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/kiln/internal/vm"
	"github.com/jbweber/kiln/internal/watch"
)

// JSONFormatter formats results as indented JSON.
type JSONFormatter struct{}

// FormatResult formats an operation result as a JSON object.
func (f *JSONFormatter) FormatResult(result any) (string, error) {
	return marshalJSON(result, "result")
}

// FormatDomain formats a single domain as a JSON object.
func (f *JSONFormatter) FormatDomain(d *vm.DomainInfo) (string, error) {
	return marshalJSON(d, "domain")
}

// FormatDomainList formats domains as a JSON array.
func (f *JSONFormatter) FormatDomainList(ds []vm.DomainInfo) (string, error) {
	if len(ds) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(ds, "domains")
}

// FormatEvents formats events as a JSON array.
func (f *JSONFormatter) FormatEvents(evs []watch.Event) (string, error) {
	if len(evs) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(evs, "events")
}

func marshalJSON(v any, what string) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to JSON: %w", what, err)
	}

	return string(data) + "\n", nil
}
