package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kilnlibvirt "github.com/jbweber/kiln/internal/libvirt"
	"github.com/jbweber/kiln/internal/vm"
	"github.com/jbweber/kiln/internal/watch"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, kilnlibvirt.DefaultURI, cfg.URI)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, kilnlibvirt.DefaultTimeout, cfg.Connect.Timeout)
	assert.Equal(t, vm.DefaultWaitTimeout, cfg.Wait.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Wait.InitialInterval)
	assert.Equal(t, 2*time.Second, cfg.Wait.MaxInterval)
	assert.Equal(t, watch.DefaultInterval, cfg.Watch.Interval)
	assert.Empty(t, cfg.Watch.History)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiln.yaml")
	content := `
uri: qemu+ssh://root@hv1/system?keyfile=/etc/kiln/id_ed25519
log:
  level: debug
wait:
  timeout: 2m
  initial_interval: 250ms
watch:
  interval: 30s
  history: /var/lib/kiln/history.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("KILN_WAIT_TIMEOUT", "90s")
	t.Setenv("KILN_CONNECT_INSECURE", "true")

	v := New()
	used, err := ReadFile(v, path)
	require.NoError(t, err)
	assert.Equal(t, path, used)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "qemu+ssh://root@hv1/system?keyfile=/etc/kiln/id_ed25519", cfg.URI)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 90*time.Second, cfg.Wait.Timeout, "environment overrides the file")
	assert.Equal(t, 250*time.Millisecond, cfg.Wait.InitialInterval)
	assert.Equal(t, 2*time.Second, cfg.Wait.MaxInterval, "unset keys keep defaults")
	assert.Equal(t, 30*time.Second, cfg.Watch.Interval)
	assert.Equal(t, "/var/lib/kiln/history.db", cfg.Watch.History)
	assert.True(t, cfg.Connect.Insecure)
}

func TestReadFile_MissingDefaultIsIgnored(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	used, err := ReadFile(New(), "")
	require.NoError(t, err)
	assert.Empty(t, used)
}

func TestReadFile_DefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, DefaultFileName), []byte("uri: qemu:///session\n"), 0644))

	v := New()
	used, err := ReadFile(v, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DefaultFileName), used)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "qemu:///session", cfg.URI)
}

func TestReadFile_ExplicitMissing(t *testing.T) {
	_, err := ReadFile(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig() Config {
	return Config{
		URI: kilnlibvirt.DefaultURI,
		Log: LogConfig{Level: "info"},
		Connect: ConnectConfig{
			Timeout: 5 * time.Second,
		},
		Wait: WaitConfig{
			Timeout:         time.Minute,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
		},
		Watch: WatchConfig{Interval: time.Minute},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty uri", mutate: func(c *Config) { c.URI = " " }, wantErr: "uri is required"},
		{name: "remote uri without host", mutate: func(c *Config) { c.URI = "qemu+ssh:///system" }, wantErr: "uri"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log.level"},
		{name: "upper-case log level", mutate: func(c *Config) { c.Log.Level = "WARN" }},
		{name: "zero connect timeout", mutate: func(c *Config) { c.Connect.Timeout = 0 }, wantErr: "connect.timeout"},
		{name: "negative wait timeout", mutate: func(c *Config) { c.Wait.Timeout = -time.Second }, wantErr: "wait.timeout"},
		{name: "zero watch interval", mutate: func(c *Config) { c.Watch.Interval = 0 }, wantErr: "watch.interval"},
		{
			name: "initial above max",
			mutate: func(c *Config) {
				c.Wait.InitialInterval = 5 * time.Second
				c.Wait.MaxInterval = time.Second
			},
			wantErr: "must not exceed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Derived(t *testing.T) {
	cfg := validConfig()
	cfg.URI = "qemu+tls://hv1/system"
	cfg.Connect.SSHKey = "/keys/id"
	cfg.Connect.KnownHosts = "/keys/known_hosts"
	cfg.Connect.PKIPath = "/etc/pki/libvirt"
	cfg.Wait.Timeout = 3 * time.Minute

	assert.Equal(t, kilnlibvirt.Options{
		Timeout:        5 * time.Second,
		SSHKeyFile:     "/keys/id",
		KnownHostsFile: "/keys/known_hosts",
		PKIPath:        "/etc/pki/libvirt",
	}, cfg.ConnectOptions())

	b := cfg.Backoff()
	assert.Equal(t, 100*time.Millisecond, b.Initial)
	assert.Equal(t, 2*time.Second, b.Max)

	client := cfg.NewClient()
	assert.Equal(t, cfg.URI, client.URI)
	assert.Equal(t, 3*time.Minute, client.WaitTimeout)
	assert.Equal(t, b, client.Waiter.Backoff)

	assert.Equal(t, "info", string(cfg.LoggerConfig().Level))
}
