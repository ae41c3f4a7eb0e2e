package libvirt

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// defaultKeyFiles are tried in order when no key is configured.
var defaultKeyFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// tunnelConn is a stream to the remote libvirtd socket forwarded over ssh.
// Closing it also tears down the ssh session.
type tunnelConn struct {
	net.Conn
	client *ssh.Client
}

func (c *tunnelConn) Close() error {
	err := c.Conn.Close()
	if cerr := c.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// dialSSH opens an ssh session to the endpoint host and forwards a stream to
// the libvirtd unix socket on that host.
func dialSSH(ep *Endpoint, opts Options) (net.Conn, error) {
	config, err := sshClientConfig(ep, opts)
	if err != nil {
		return nil, err
	}

	port := ep.Port
	if port == "" {
		port = "22"
	}
	addr := net.JoinHostPort(ep.Host, port)

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w", addr, err)
	}

	conn, err := client.Dial("unix", ep.SocketPath())
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to reach %s on %s: %w", ep.SocketPath(), addr, err)
	}

	return &tunnelConn{Conn: conn, client: client}, nil
}

func sshClientConfig(ep *Endpoint, opts Options) (*ssh.ClientConfig, error) {
	keyFile := ep.KeyFile
	if keyFile == "" {
		keyFile = opts.SSHKeyFile
	}
	signer, err := loadSigner(keyFile)
	if err != nil {
		return nil, err
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if !ep.NoVerify && !opts.Insecure {
		knownHosts := opts.KnownHostsFile
		if knownHosts == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("unable to locate known_hosts: %w", err)
			}
			knownHosts = filepath.Join(home, ".ssh", "known_hosts")
		}
		hostKeyCallback, err = knownhosts.New(knownHosts)
		if err != nil {
			return nil, fmt.Errorf("unable to load known hosts from %s: %w", knownHosts, err)
		}
	}

	user := ep.User
	if user == "" {
		user = os.Getenv("USER")
	}

	return &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	}, nil
}

// loadSigner reads a private key from path, or from the first default key
// under ~/.ssh when path is empty.
func loadSigner(path string) (ssh.Signer, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("unable to locate ssh key: %w", err)
		}
		for _, name := range defaultKeyFiles {
			candidate := filepath.Join(home, ".ssh", name)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return nil, errors.New("no ssh private key found; set keyfile= in the URI or connect.ssh_key")
		}
	}

	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read private key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("unable to parse private key %s: %w", path, err)
	}

	return signer, nil
}
