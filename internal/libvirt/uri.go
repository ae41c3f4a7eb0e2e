package libvirt

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/digitalocean/go-libvirt"
)

// DefaultURI is used when no connection URI is configured.
const DefaultURI = "qemu:///system"

// DefaultSocket is the libvirtd socket for the system instance.
const DefaultSocket = "/var/run/libvirt/libvirt-sock"

// Transport identifies how the RPC stream to libvirtd is carried.
type Transport string

const (
	TransportUnix Transport = "unix"
	TransportSSH  Transport = "ssh"
	TransportTLS  Transport = "tls"
	TransportTCP  Transport = "tcp"
)

// Endpoint is a parsed libvirt connection URI.
//
// Only the parameters the dialers understand are kept; everything else in
// the query string is ignored.
type Endpoint struct {
	Raw       string
	Driver    string
	Transport Transport
	User      string
	Host      string
	Port      string
	Path      string

	// Socket overrides the libvirtd socket path (local or at the far end of an
	// ssh tunnel).
	Socket string
	// KeyFile is the ssh private key (keyfile=).
	KeyFile string
	// NoVerify disables host key or certificate checks (no_verify=1).
	NoVerify bool
	// PKIPath is the directory holding TLS client material (pkipath=).
	PKIPath string
}

// ParseURI parses a libvirt connection URI of the form
// driver[+transport]://[user@][host][:port]/path[?params].
//
// An empty string yields DefaultURI. A URI with a host and no explicit
// transport uses TLS, which is libvirt's own default for remote URIs.
func ParseURI(raw string) (*Endpoint, error) {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultURI
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid connection URI %q: %w", raw, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("invalid connection URI %q: missing driver", raw)
	}

	ep := &Endpoint{
		Raw:  raw,
		Host: u.Hostname(),
		Port: u.Port(),
		Path: u.Path,
	}
	if u.User != nil {
		ep.User = u.User.Username()
	}

	driver, transport, hasTransport := strings.Cut(u.Scheme, "+")
	ep.Driver = driver

	switch {
	case hasTransport:
		ep.Transport = Transport(transport)
	case ep.Host != "":
		ep.Transport = TransportTLS
	default:
		ep.Transport = TransportUnix
	}

	switch ep.Transport {
	case TransportUnix, TransportSSH, TransportTLS, TransportTCP:
	default:
		return nil, fmt.Errorf("invalid connection URI %q: unsupported transport %q", raw, ep.Transport)
	}

	if ep.Transport != TransportUnix && ep.Host == "" {
		return nil, fmt.Errorf("invalid connection URI %q: transport %s requires a host", raw, ep.Transport)
	}

	q := u.Query()
	ep.Socket = q.Get("socket")
	ep.KeyFile = q.Get("keyfile")
	ep.PKIPath = q.Get("pkipath")
	ep.NoVerify = q.Get("no_verify") == "1"

	return ep, nil
}

// RemoteURI is the URI handed to libvirtd once the transport is up: the
// driver and path without host or transport.
func (e *Endpoint) RemoteURI() libvirt.ConnectURI {
	path := e.Path
	if path == "" {
		path = "/system"
	}
	return libvirt.ConnectURI(e.Driver + "://" + path)
}

// SocketPath returns the libvirtd socket to reach, local or remote.
func (e *Endpoint) SocketPath() string {
	if e.Socket != "" {
		return e.Socket
	}
	return DefaultSocket
}

func (e *Endpoint) String() string {
	return e.Raw
}
