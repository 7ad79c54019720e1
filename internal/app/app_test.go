package app

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k8s-simplify/internal/config"
	"k8s-simplify/internal/pkg/logger"
	"k8s-simplify/internal/pkg/ssh"
)

func TestNewTransport(t *testing.T) {
	tr, err := NewTransport(config.SSHConfig{Transport: config.TransportOpenSSH})
	require.NoError(t, err)
	assert.IsType(t, &ssh.OpenSSHTransport{}, tr)

	tr, err = NewTransport(config.SSHConfig{Transport: config.TransportNative})
	require.NoError(t, err)
	assert.IsType(t, &ssh.NativeTransport{}, tr)

	_, err = NewTransport(config.SSHConfig{Transport: "telnet"})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	a, err := New(cfg, logger.NewNop(), Options{Registerer: reg})
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Cluster)
	assert.NotNil(t, a.SSH)
	assert.Equal(t, cfg.SSH.Retries, a.Executor.Retries())
}
