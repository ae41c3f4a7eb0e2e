// Package libvirt manages connections to a libvirt daemon.
//
// This package wraps github.com/digitalocean/go-libvirt and adds:
//   - Connection URI parsing (driver[+transport]://[user@]host[:port]/path)
//   - Local unix socket, TCP, TLS and ssh-tunnelled transports
//   - Scoped connections that are always closed (WithConnection)
//
// Connection Management:
//
//	err := libvirt.WithConnection(ctx, "qemu+ssh://root@hv1/system", libvirt.Options{}, func(c *libvirt.Client) error {
//	    _, err := c.Libvirt().DomainLookupByName("web-01")
//	    return err
//	})
//
// The ssh transport dials the host with golang.org/x/crypto/ssh and forwards
// a stream to the remote libvirtd socket; go-libvirt then speaks its RPC
// protocol over that stream. Host keys are verified against known_hosts
// unless no_verify=1 is set.
//
// Consumer-Side Interfaces:
//
// This package does not define interfaces. Consumers (internal/vm,
// internal/storage) declare the operations they need and *libvirt.Libvirt
// satisfies them implicitly.
package libvirt
