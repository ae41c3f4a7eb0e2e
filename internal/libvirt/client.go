package libvirt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket"
	"github.com/digitalocean/go-libvirt/socket/dialers"
)

// DefaultTimeout bounds dialing when Options.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// Options tune how a connection is established. URI parameters take
// precedence over the matching fields here.
type Options struct {
	// Timeout bounds dialing the transport.
	Timeout time.Duration
	// SSHKeyFile is the private key for ssh transports.
	SSHKeyFile string
	// KnownHostsFile verifies ssh host keys. Defaults to ~/.ssh/known_hosts.
	KnownHostsFile string
	// PKIPath holds clientcert.pem, clientkey.pem and cacert.pem for TLS.
	PKIPath string
	// Insecure skips host key and certificate verification.
	Insecure bool
}

// Client wraps a go-libvirt connection to a single hypervisor endpoint.
type Client struct {
	libvirt  *libvirt.Libvirt
	endpoint *Endpoint
}

// Connect dials the hypervisor named by uri and performs the libvirt
// connect handshake. The returned Client must be closed via Close.
func Connect(uri string, opts Options) (*Client, error) {
	return ConnectWithContext(context.Background(), uri, opts)
}

// ConnectWithContext is Connect with cancellation. Dialing and the libvirt
// handshake together are bounded by opts.Timeout on every transport. A
// connection that completes after the deadline is closed in the background.
func ConnectWithContext(ctx context.Context, uri string, opts Options) (*Client, error) {
	ep, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("connection cancelled: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		c, err := connect(ep, opts)
		resultCh <- result{client: c, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-resultCh; res.client != nil {
				_ = res.client.Close()
			}
		}()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("timed out connecting to %s after %s: %w", ep, opts.Timeout, ctx.Err())
		}
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

func connect(ep *Endpoint, opts Options) (*Client, error) {
	dialer, err := newDialer(ep, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare transport for %s: %w", ep, err)
	}

	l := libvirt.NewWithDialer(dialer)
	if err := l.ConnectToURI(ep.RemoteURI()); err != nil {
		return nil, fmt.Errorf("failed to connect to libvirt at %s: %w", ep, err)
	}

	return &Client{libvirt: l, endpoint: ep}, nil
}

// WithConnection opens a connection, runs fn and closes the connection
// whether or not fn fails. A close failure is reported only if fn succeeded.
func WithConnection(ctx context.Context, uri string, opts Options, fn func(*Client) error) (err error) {
	c, err := ConnectWithContext(ctx, uri, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(c)
}

// newDialer picks the go-libvirt dialer for the endpoint's transport.
func newDialer(ep *Endpoint, opts Options) (socket.Dialer, error) {
	switch ep.Transport {
	case TransportUnix:
		return dialers.NewLocal(
			dialers.WithSocket(ep.SocketPath()),
			dialers.WithLocalTimeout(opts.Timeout),
		), nil

	case TransportTCP:
		ropts := []dialers.RemoteOption{dialers.WithRemoteTimeout(opts.Timeout)}
		if ep.Port != "" {
			ropts = append(ropts, dialers.UsePort(ep.Port))
		}
		return dialers.NewRemote(ep.Host, ropts...), nil

	case TransportTLS:
		// The TLS dialer has no timeout option; ConnectWithContext bounds it.
		var topts []dialers.TLSOption
		if ep.Port != "" {
			topts = append(topts, dialers.UseTLSPort(ep.Port))
		}
		pki := ep.PKIPath
		if pki == "" {
			pki = opts.PKIPath
		}
		if pki != "" {
			topts = append(topts, dialers.UsePKIPath(pki))
		}
		if ep.NoVerify || opts.Insecure {
			topts = append(topts, dialers.WithInsecureNoVerify())
		}
		return dialers.NewTLS(ep.Host, topts...), nil

	case TransportSSH:
		conn, err := dialSSH(ep, opts)
		if err != nil {
			return nil, err
		}
		return dialers.NewAlreadyConnected(conn), nil
	}

	return nil, fmt.Errorf("unsupported transport %q", ep.Transport)
}

// Close closes the libvirt connection and releases resources.
// It is safe to call Close multiple times.
func (c *Client) Close() error {
	if c.libvirt == nil {
		return nil
	}

	l := c.libvirt
	c.libvirt = nil
	if err := l.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}

	return nil
}

// Libvirt returns the underlying go-libvirt client for direct API access.
func (c *Client) Libvirt() *libvirt.Libvirt {
	return c.libvirt
}

// Endpoint returns the parsed URI this client is connected to.
func (c *Client) Endpoint() *Endpoint {
	return c.endpoint
}

// Ping verifies the connection is still alive and returns the libvirt
// library version reported by the daemon.
func (c *Client) Ping() (uint64, error) {
	if c.libvirt == nil {
		return 0, fmt.Errorf("client not connected")
	}

	version, err := c.libvirt.ConnectGetLibVersion()
	if err != nil {
		return 0, fmt.Errorf("libvirt connection is dead: %w", err)
	}

	return version, nil
}

// FormatVersion renders a libvirt version number (major*1e6 + minor*1e3 +
// release) as major.minor.release.
func FormatVersion(v uint64) string {
	return fmt.Sprintf("%d.%d.%d", v/1000000, (v/1000)%1000, v%1000)
}
