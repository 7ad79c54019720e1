package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDashboardToken(t *testing.T) {
	cfg := ClusterConfig{Master: "10.0.0.1", Workers: []string{"10.0.0.2"}}

	next, err := cfg.WithDashboardToken("first")
	require.NoError(t, err)
	assert.Equal(t, "first", next.DashboardToken)
	assert.Empty(t, cfg.DashboardToken)

	// 快照互不影响
	next.Workers[0] = "changed"
	assert.Equal(t, "10.0.0.2", cfg.Workers[0])

	again, err := next.WithDashboardToken("second")
	assert.ErrorIs(t, err, ErrTokenAlreadySet)
	assert.Equal(t, "first", again.DashboardToken)
}

func TestClusterConfig_Hosts(t *testing.T) {
	cfg := ClusterConfig{Master: "m", Workers: []string{"w1", "w2", "w1"}, User: "ubuntu", Password: "pw"}
	assert.Equal(t, []string{"m", "w1", "w2", "w1"}, cfg.Hosts())

	target := cfg.Target("w1")
	assert.Equal(t, "ubuntu@w1", target.Login())
	assert.True(t, target.Credentials.UsePassword())
	assert.Equal(t, "ubuntu", target.Credentials.String())
}

func TestNodeStatus_Ready(t *testing.T) {
	assert.True(t, NodeStatus{Status: "Ready"}.Ready())
	assert.False(t, NodeStatus{Status: "NotReady"}.Ready())
	assert.False(t, NodeStatus{Status: "ready"}.Ready())
}
