package utils

import (
	"fmt"
	"net"
	"regexp"
	"strings"
)

var (
	hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	userPattern     = regexp.MustCompile(`^[a-z_][a-z0-9_.-]{0,31}$`)
	versionPattern  = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)
)

// ValidateHost accepts an IP address or a DNS hostname.
func ValidateHost(host string) error {
	if host == "" {
		return fmt.Errorf("主机地址不能为空")
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if len(host) > 253 || !hostnamePattern.MatchString(host) {
		return fmt.Errorf("无效的主机地址: %s", host)
	}
	return nil
}

func ValidateHosts(hosts []string) error {
	for _, h := range hosts {
		if err := ValidateHost(h); err != nil {
			return err
		}
	}
	return nil
}

func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("端口必须在1-65535范围内: %d", port)
	}
	return nil
}

func ValidateUser(user string) error {
	if !userPattern.MatchString(user) {
		return fmt.Errorf("无效的用户名: %s", user)
	}
	return nil
}

// ValidateClusterName follows the Kubernetes DNS label rules: lowercase letters, digits and hyphens.
func ValidateClusterName(name string) error {
	if name == "" {
		return fmt.Errorf("集群名称不能为空")
	}

	if len(name) > 63 {
		return fmt.Errorf("集群名称长度不能超过63个字符")
	}

	for _, char := range name {
		if !((char >= 'a' && char <= 'z') || (char >= '0' && char <= '9') || char == '-') {
			return fmt.Errorf("集群名称只能包含小写字母、数字和连字符: %s", name)
		}
	}

	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return fmt.Errorf("集群名称不能以连字符开头或结尾: %s", name)
	}

	return nil
}

// ValidateVersion accepts versions as kubeadm upgrade apply does, e.g. v1.33.2.
func ValidateVersion(version string) error {
	if !versionPattern.MatchString(version) {
		return fmt.Errorf("无效的版本号: %s", version)
	}
	return nil
}

// ValidateClusterTargets checks the master, worker and user values shared by every workflow.
func ValidateClusterTargets(master string, workers []string, user string) *APIError {
	if err := ValidateHost(master); err != nil {
		return NewValidationError("master", err)
	}
	if err := ValidateHosts(workers); err != nil {
		return NewValidationError("workers", err)
	}
	if err := ValidateUser(user); err != nil {
		return NewValidationError("user", err)
	}
	return nil
}
