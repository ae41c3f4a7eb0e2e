// Package loader reads libvirt domain descriptors from files or stdin.
//
// Descriptors are checked for well-formedness and a <name> element when they
// are loaded, so a malformed file fails before any hypervisor connection is
// opened.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jbweber/kiln/internal/descriptor"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// maxDescriptorSize bounds how much is read from a file or stream.
const maxDescriptorSize = 4 << 20

// Descriptor is a loaded domain descriptor.
type Descriptor struct {
	// XML is the descriptor exactly as read.
	XML string
	// Name is the domain name the descriptor declares.
	Name string
	// UUID is the declared identity, empty if absent.
	UUID string
	// Source is the file path, or "stdin".
	Source string
}

// Load reads a descriptor from path, or from stdin when path is "-".
func Load(path string, stdin io.Reader) (*Descriptor, error) {
	if path == Stdin {
		return LoadFromReader(stdin, "stdin")
	}
	return LoadFromFile(path)
}

// LoadFromFile reads a descriptor from a file.
func LoadFromFile(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return LoadFromReader(f, path)
}

// LoadFromReader reads a descriptor from r. source names r in errors.
func LoadFromReader(r io.Reader, source string) (*Descriptor, error) {
	if r == nil {
		return nil, fmt.Errorf("no input for %s", source)
	}

	data, err := io.ReadAll(io.LimitReader(r, maxDescriptorSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	if len(data) > maxDescriptorSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", source, maxDescriptorSize)
	}

	d, err := LoadFromXML(string(data))
	if err != nil {
		return nil, fmt.Errorf("invalid descriptor in %s: %w", source, err)
	}
	d.Source = source

	return d, nil
}

// LoadFromXML validates an in-memory descriptor.
func LoadFromXML(xml string) (*Descriptor, error) {
	if strings.TrimSpace(xml) == "" {
		return nil, errors.New("descriptor is empty")
	}

	info, err := descriptor.Inspect(xml)
	if err != nil {
		return nil, err
	}

	// Validate required fields
	if info.Name == "" {
		return nil, errors.New("missing required element: name")
	}

	return &Descriptor{XML: xml, Name: info.Name, UUID: info.UUID}, nil
}
