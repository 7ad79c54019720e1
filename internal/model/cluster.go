package model

import (
	"errors"

	"k8s-simplify/internal/pkg/ssh"
)

var ErrTokenAlreadySet = errors.New("dashboard token already set")

// ClusterConfig is an immutable snapshot of one workflow run. Phases that change it return a new value.
type ClusterConfig struct {
	Name           string
	Master         string
	Workers        []string
	User           string
	Password       string
	DashboardToken string
	ExportPath     string
}

func (c ClusterConfig) Credentials() ssh.Credentials {
	return ssh.Credentials{User: c.User, Password: c.Password}
}

func (c ClusterConfig) Target(host string) ssh.Target {
	return ssh.Target{Host: host, Credentials: c.Credentials()}
}

// Hosts returns the master followed by the workers in configuration order.
func (c ClusterConfig) Hosts() []string {
	hosts := make([]string, 0, len(c.Workers)+1)
	hosts = append(hosts, c.Master)
	return append(hosts, c.Workers...)
}

// WithDashboardToken returns a copy carrying token. A token, once set, cannot be replaced.
func (c ClusterConfig) WithDashboardToken(token string) (ClusterConfig, error) {
	if c.DashboardToken != "" {
		return c, ErrTokenAlreadySet
	}
	next := c.clone()
	next.DashboardToken = token
	return next, nil
}

func (c ClusterConfig) clone() ClusterConfig {
	next := c
	next.Workers = append([]string(nil), c.Workers...)
	return next
}
