// Package naming holds the naming rules for libvirt resources that kiln
// addresses by name.
package naming

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// MaxDomainNameLength bounds domain names to what fits a filesystem path
// component, which is how libvirt stores persistent definitions.
const MaxDomainNameLength = 255

// ValidateDomainName checks that name can identify a libvirt domain.
//
// libvirt rejects names containing '/', and names with surrounding
// whitespace or control characters cannot be typed back reliably.
func ValidateDomainName(name string) error {
	if name == "" {
		return errors.New("domain name is required")
	}
	if len(name) > MaxDomainNameLength {
		return fmt.Errorf("domain name is %d bytes, maximum is %d", len(name), MaxDomainNameLength)
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("domain name %q has leading or trailing whitespace", name)
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("domain name %q must not contain '/'", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("domain name %q contains a control character", name)
		}
	}

	return nil
}

// HistoryKey returns the key prefix under which events for a domain are
// journaled.
func HistoryKey(domain string) []byte {
	return []byte(domain + "/")
}
