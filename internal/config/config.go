package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"k8s-simplify/pkg/utils"
)

const EnvPrefix = "K8S_SIMPLIFY"

const (
	TransportOpenSSH = "openssh"
	TransportNative  = "native"
)

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	SSH     SSHConfig     `mapstructure:"ssh"`
	Install InstallConfig `mapstructure:"install"`
	Workers WorkersConfig `mapstructure:"workers"`
	Server  ServerConfig  `mapstructure:"server"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SSHConfig struct {
	Transport             string        `mapstructure:"transport"`
	Port                  int           `mapstructure:"port"`
	KeyPath               string        `mapstructure:"key_path"`
	KnownHostsPath        string        `mapstructure:"known_hosts_path"`
	Retries               int           `mapstructure:"retries"`
	ConnectTimeout        time.Duration `mapstructure:"connect_timeout"`
	StrictHostKeyChecking bool          `mapstructure:"strict_host_key_checking"`
}

type InstallConfig struct {
	KubernetesChannel string        `mapstructure:"kubernetes_channel"`
	PodNetworkCIDR    string        `mapstructure:"pod_network_cidr"`
	DashboardPort     int           `mapstructure:"dashboard_port"`
	TokenDuration     string        `mapstructure:"token_duration"`
	AdminUser         string        `mapstructure:"admin_user"`
	NetworkManifest   string        `mapstructure:"network_manifest"`
	DashboardManifest string        `mapstructure:"dashboard_manifest"`
	ReadinessTimeout  time.Duration `mapstructure:"readiness_timeout"`
	ReadinessInterval time.Duration `mapstructure:"readiness_interval"`
	RolloutTimeout    time.Duration `mapstructure:"rollout_timeout"`
}

type WorkersConfig struct {
	Concurrency     int  `mapstructure:"concurrency"`
	ContinueOnError bool `mapstructure:"continue_on_error"`
	Dedupe          bool `mapstructure:"dedupe"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Addr, s.Port)
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("ssh.transport", TransportOpenSSH)
	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.key_path", "")
	v.SetDefault("ssh.known_hosts_path", "")
	v.SetDefault("ssh.retries", 2)
	v.SetDefault("ssh.connect_timeout", 30*time.Second)
	v.SetDefault("ssh.strict_host_key_checking", false)

	v.SetDefault("install.kubernetes_channel", "v1.33")
	v.SetDefault("install.pod_network_cidr", "10.244.0.0/16")
	v.SetDefault("install.dashboard_port", 32443)
	v.SetDefault("install.token_duration", "8760h")
	v.SetDefault("install.admin_user", "k8sadmin")
	v.SetDefault("install.network_manifest", "https://raw.githubusercontent.com/flannel-io/flannel/master/Documentation/kube-flannel.yml")
	v.SetDefault("install.dashboard_manifest", "https://raw.githubusercontent.com/kubernetes/dashboard/v2.7.0/aio/deploy/recommended.yaml")
	v.SetDefault("install.readiness_timeout", 60*time.Second)
	v.SetDefault("install.readiness_interval", 5*time.Second)
	v.SetDefault("install.rollout_timeout", 5*time.Minute)

	v.SetDefault("workers.concurrency", 1)
	v.SetDefault("workers.continue_on_error", false)
	v.SetDefault("workers.dedupe", false)

	v.SetDefault("server.addr", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
}

// Load layers defaults, the optional config file, .env and K8S_SIMPLIFY_* environment variables.
// Flags bound to v by the caller take precedence over all of them.
func Load(v *viper.Viper, path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.SSH.Transport {
	case TransportOpenSSH, TransportNative:
	default:
		errs = append(errs, fmt.Errorf("ssh.transport must be %q or %q, got %q", TransportOpenSSH, TransportNative, c.SSH.Transport))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	if c.SSH.Retries < 0 {
		errs = append(errs, fmt.Errorf("ssh.retries must not be negative, got %d", c.SSH.Retries))
	}
	if err := utils.ValidatePort(c.SSH.Port); err != nil {
		errs = append(errs, fmt.Errorf("ssh.port: %w", err))
	}
	if err := utils.ValidatePort(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("server.port: %w", err))
	}
	if c.Install.DashboardPort < 30000 || c.Install.DashboardPort > 32767 {
		errs = append(errs, fmt.Errorf("install.dashboard_port must be a NodePort (30000-32767), got %d", c.Install.DashboardPort))
	}
	if c.Workers.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("workers.concurrency must be at least 1, got %d", c.Workers.Concurrency))
	}
	return errors.Join(errs...)
}
