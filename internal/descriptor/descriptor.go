// Package descriptor reads the few fields the lifecycle operations need from a
// libvirt domain descriptor and performs the one edit they make to it.
//
// Descriptors are otherwise treated as opaque: they are passed to the
// hypervisor verbatim, so every transform here is textual and leaves the rest
// of the document byte-for-byte intact.
package descriptor

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"libvirt.org/go/libvirtxml"
)

// ErrParse is the sentinel matched by every *ParseError.
var ErrParse = errors.New("malformed domain descriptor")

// ParseError reports a descriptor that could not be read.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed domain descriptor: %s: %v", e.Reason, e.Err)
	}
	return "malformed domain descriptor: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrParse) match.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Info holds the identifying fields of a descriptor.
type Info struct {
	Name string
	UUID string
}

// PoolVolumes lists the volumes a descriptor references in one pool, in
// declaration order.
type PoolVolumes struct {
	Pool    string
	Volumes []string
}

// Inspect parses a descriptor and returns its name and identity.
func Inspect(descriptor string) (*Info, error) {
	dom, err := unmarshal(descriptor)
	if err != nil {
		return nil, err
	}

	return &Info{
		Name: strings.TrimSpace(dom.Name),
		UUID: strings.TrimSpace(dom.UUID),
	}, nil
}

// VolumesByPool returns the storage volumes referenced by disk devices of
// type "volume" with device role "disk", grouped by pool. Pools appear in the
// order they are first referenced and volumes keep their declaration order.
//
// Entries missing either the pool or the volume attribute cannot be resolved
// and are skipped. A descriptor without such disks yields an empty result.
func VolumesByPool(descriptor string) ([]PoolVolumes, error) {
	dom, err := unmarshal(descriptor)
	if err != nil {
		return nil, err
	}

	groups := []PoolVolumes{}
	if dom.Devices == nil {
		return groups, nil
	}

	index := make(map[string]int)
	for _, disk := range dom.Devices.Disks {
		if disk.Device != "disk" || disk.Source == nil || disk.Source.Volume == nil {
			continue
		}

		pool := disk.Source.Volume.Pool
		volume := disk.Source.Volume.Volume
		if pool == "" || volume == "" {
			continue
		}

		i, ok := index[pool]
		if !ok {
			i = len(groups)
			index[pool] = i
			groups = append(groups, PoolVolumes{Pool: pool})
		}
		groups[i].Volumes = append(groups[i].Volumes, volume)
	}

	return groups, nil
}

// WithIdentity returns the descriptor with a <uuid> element carrying identity
// inserted immediately before the top-level <name> element. If the descriptor
// already declares a uuid it is returned unchanged.
//
// The inserted element reuses the indentation of the <name> line so the
// document keeps its layout.
func WithIdentity(descriptor, identity string) (string, error) {
	id, err := uuid.Parse(identity)
	if err != nil {
		return "", fmt.Errorf("invalid domain identity %q: %w", identity, err)
	}

	nameOffset, hasUUID, err := scanTopLevel(descriptor)
	if err != nil {
		return "", err
	}
	if hasUUID {
		return descriptor, nil
	}

	element := "<uuid>" + id.String() + "</uuid>"
	if indent, ok := lineIndent(descriptor, nameOffset); ok {
		element += "\n" + indent
	}

	return descriptor[:nameOffset] + element + descriptor[nameOffset:], nil
}

// unmarshal parses a descriptor with libvirtxml.
func unmarshal(descriptor string) (*libvirtxml.Domain, error) {
	if strings.TrimSpace(descriptor) == "" {
		return nil, &ParseError{Reason: "descriptor is empty"}
	}

	var dom libvirtxml.Domain
	if err := dom.Unmarshal(descriptor); err != nil {
		return nil, &ParseError{Reason: "invalid XML", Err: err}
	}

	return &dom, nil
}

// scanTopLevel walks the children of the root <domain> element and returns
// the byte offset of the <name> start tag and whether a <uuid> child exists.
func scanTopLevel(descriptor string) (nameOffset int, hasUUID bool, err error) {
	dec := xml.NewDecoder(strings.NewReader(descriptor))

	nameOffset = -1
	depth := 0
	for {
		offset := int(dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, false, &ParseError{Reason: "invalid XML", Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 && t.Name.Local != "domain" {
				return 0, false, &ParseError{Reason: fmt.Sprintf("root element is <%s>, want <domain>", t.Name.Local)}
			}
			if depth != 2 {
				continue
			}
			switch t.Name.Local {
			case "uuid":
				hasUUID = true
			case "name":
				if nameOffset < 0 {
					nameOffset = offset
				}
			}
		case xml.EndElement:
			depth--
		}
	}

	if nameOffset < 0 {
		return 0, false, &ParseError{Reason: "descriptor has no <name> element"}
	}

	return nameOffset, hasUUID, nil
}

// lineIndent returns the whitespace between the start of the line holding
// offset and offset itself. ok is false when other content precedes offset on
// that line.
func lineIndent(s string, offset int) (string, bool) {
	start := strings.LastIndexByte(s[:offset], '\n') + 1
	indent := s[start:offset]
	if strings.Trim(indent, " \t") != "" {
		return "", false
	}
	return indent, start > 0
}
