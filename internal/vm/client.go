package vm

import (
	"context"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/rs/zerolog"

	kilnlibvirt "github.com/jbweber/kiln/internal/libvirt"
	kilnlog "github.com/jbweber/kiln/internal/log"
	"github.com/jbweber/kiln/internal/metrics"
)

// Client runs lifecycle operations against one hypervisor endpoint. Every
// operation opens its own connection and closes it before returning; no
// connection is shared between calls, so a Client is safe for concurrent
// use on different domains.
type Client struct {
	// URI is the libvirt connection URI.
	URI string
	// Options tune how connections are dialed.
	Options kilnlibvirt.Options
	// Waiter drives Start and Stop convergence.
	Waiter StateWaiter
	// WaitTimeout is the budget used when a wait request gives none.
	WaitTimeout time.Duration

	logger zerolog.Logger
	dial   func(ctx context.Context) (connection, error)
}

// NewClient creates a Client for the hypervisor at uri.
func NewClient(uri string, opts kilnlibvirt.Options) *Client {
	c := &Client{
		URI:         uri,
		Options:     opts,
		Waiter:      StateWaiter{Backoff: DefaultBackoff()},
		WaitTimeout: DefaultWaitTimeout,
		logger:      kilnlog.WithComponent("vm"),
	}
	c.dial = c.dialLibvirt

	return c
}

// libvirtConn adapts a connected client to the connection interface.
type libvirtConn struct {
	*libvirt.Libvirt
	client *kilnlibvirt.Client
}

func (c *libvirtConn) Close() error {
	return c.client.Close()
}

func (c *Client) dialLibvirt(ctx context.Context) (connection, error) {
	client, err := kilnlibvirt.ConnectWithContext(ctx, c.URI, c.Options)
	if err != nil {
		return nil, err
	}

	return &libvirtConn{Libvirt: client.Libvirt(), client: client}, nil
}

// withConnection opens a connection, runs fn and always closes the
// connection. The context passed to fn carries a logger tagged with the
// operation and domain. The outcome is recorded in metrics.
func (c *Client) withConnection(ctx context.Context, op, domain string, fn func(context.Context, connection) error) (err error) {
	logger := c.logger.With().Str("operation", op).Logger()
	if domain != "" {
		logger = kilnlog.WithDomain(logger, domain)
	}
	ctx = logger.WithContext(ctx)

	timer := metrics.NewTimer()
	defer func() {
		metrics.RecordOperation(op, timer, err)
	}()

	logger.Debug().Str("uri", c.URI).Msg("connecting to hypervisor")
	conn, err := c.dial(ctx)
	if err != nil {
		return opError(op, domain, StepConnect, &ConnectionError{URI: c.URI, Err: err})
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("failed to close hypervisor connection")
		}
	}()

	return fn(ctx, conn)
}

// WaitOptions control whether and how long Start and Stop wait for the
// domain to converge.
type WaitOptions struct {
	Wait    bool
	Timeout time.Duration
}

func (c *Client) waitBudget(opts WaitOptions) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	if c.WaitTimeout > 0 {
		return c.WaitTimeout
	}
	return DefaultWaitTimeout
}
