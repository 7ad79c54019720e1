package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, TransportOpenSSH, cfg.SSH.Transport)
	assert.Equal(t, 2, cfg.SSH.Retries)
	assert.Equal(t, 30*time.Second, cfg.SSH.ConnectTimeout)
	assert.False(t, cfg.SSH.StrictHostKeyChecking)
	assert.Equal(t, 32443, cfg.Install.DashboardPort)
	assert.Equal(t, "8760h", cfg.Install.TokenDuration)
	assert.Equal(t, 60*time.Second, cfg.Install.ReadinessTimeout)
	assert.Equal(t, 5*time.Second, cfg.Install.ReadinessInterval)
	assert.Equal(t, 1, cfg.Workers.Concurrency)
	assert.False(t, cfg.Workers.ContinueOnError)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: json
ssh:
  transport: native
  retries: 4
  connect_timeout: 10s
workers:
  concurrency: 3
  dedupe: true
`), 0o600))
	t.Setenv("K8S_SIMPLIFY_SSH_RETRIES", "1")
	t.Setenv("K8S_SIMPLIFY_INSTALL_KUBERNETES_CHANNEL", "v1.34")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, TransportNative, cfg.SSH.Transport)
	assert.Equal(t, 1, cfg.SSH.Retries)
	assert.Equal(t, 10*time.Second, cfg.SSH.ConnectTimeout)
	assert.Equal(t, "v1.34", cfg.Install.KubernetesChannel)
	assert.Equal(t, 3, cfg.Workers.Concurrency)
	assert.True(t, cfg.Workers.Dedupe)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	v := viper.New()
	v.Set("ssh.transport", "telnet")
	v.Set("workers.concurrency", 0)
	v.Set("install.dashboard_port", 443)
	v.Set("ssh.port", 70000)
	v.Set("server.port", 0)

	_, err := Load(v, "")
	require.Error(t, err)
	assert.ErrorContains(t, err, "ssh.transport")
	assert.ErrorContains(t, err, "workers.concurrency")
	assert.ErrorContains(t, err, "install.dashboard_port")
	assert.ErrorContains(t, err, "ssh.port")
	assert.ErrorContains(t, err, "server.port")
}
