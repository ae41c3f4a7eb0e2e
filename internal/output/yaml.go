package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/kiln/internal/vm"
	"github.com/jbweber/kiln/internal/watch"
)

// YAMLFormatter formats results as YAML.
type YAMLFormatter struct{}

// FormatResult formats an operation result as a YAML document.
func (f *YAMLFormatter) FormatResult(result any) (string, error) {
	data, err := yaml.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result to YAML: %w", err)
	}

	return string(data), nil
}

// FormatDomain formats a single domain as a YAML document.
func (f *YAMLFormatter) FormatDomain(d *vm.DomainInfo) (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to marshal domain to YAML: %w", err)
	}

	return string(data), nil
}

// FormatDomainList formats domains as a YAML stream (multiple documents
// separated by ---).
func (f *YAMLFormatter) FormatDomainList(ds []vm.DomainInfo) (string, error) {
	if len(ds) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	for i := range ds {
		data, err := yaml.Marshal(&ds[i])
		if err != nil {
			return "", fmt.Errorf("failed to marshal domain %s to YAML: %w", ds[i].Name, err)
		}

		// Add document separator between domains (but not before the first one)
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}

	return buf.String(), nil
}

// FormatEvents formats events as a YAML sequence.
func (f *YAMLFormatter) FormatEvents(evs []watch.Event) (string, error) {
	if len(evs) == 0 {
		return "", nil
	}

	data, err := yaml.Marshal(evs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal events to YAML: %w", err)
	}

	return string(data), nil
}
