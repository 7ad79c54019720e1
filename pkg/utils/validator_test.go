package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateHost(t *testing.T) {
	tests := []struct {
		host    string
		wantErr bool
	}{
		{"10.0.0.1", false},
		{"fd00::1", false},
		{"master-1.example.com", false},
		{"node1", false},
		{"", true},
		{"-bad.example.com", true},
		{"host;rm -rf /", true},
		{"10.0.0.1 && id", true},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			err := ValidateHost(tt.host)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.Error(t, ValidateHosts([]string{"10.0.0.2", "bad host"}))
	assert.NoError(t, ValidateHosts(nil))
}

func TestValidateUser(t *testing.T) {
	assert.NoError(t, ValidateUser("ubuntu"))
	assert.NoError(t, ValidateUser("k8s_admin"))
	assert.Error(t, ValidateUser(""))
	assert.Error(t, ValidateUser("Root"))
	assert.Error(t, ValidateUser("a b"))
}

func TestValidateClusterName(t *testing.T) {
	assert.NoError(t, ValidateClusterName("prod-1"))
	assert.Error(t, ValidateClusterName(""))
	assert.Error(t, ValidateClusterName("Prod"))
	assert.Error(t, ValidateClusterName("-prod"))
	assert.Error(t, ValidateClusterName("prod_1"))
}

func TestValidateVersion(t *testing.T) {
	for _, v := range []string{"v1.33.2", "1.33.0", "v1.34.0-rc.1"} {
		assert.NoError(t, ValidateVersion(v), v)
	}
	for _, v := range []string{"", "latest", "v1.33", "v1.33.2; reboot"} {
		assert.Error(t, ValidateVersion(v), v)
	}
}

func TestAsAPIError(t *testing.T) {
	apiErr := NewValidationError("master", errors.New("bad"))
	assert.Same(t, apiErr, AsAPIError(apiErr))

	sys := AsAPIError(errors.New("boom"))
	assert.Equal(t, CodeSystem, sys.Code)
	assert.Equal(t, "系统错误: boom", sys.Error())
}
