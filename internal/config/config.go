package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/daydemir/vhostdoctor/internal/remote"
	"github.com/daydemir/vhostdoctor/internal/types"
	"github.com/daydemir/vhostdoctor/internal/utils"
)

// EnvPrefix prefixes environment overrides: VHOSTDOCTOR_SSH_HOST sets ssh.host
const EnvPrefix = "VHOSTDOCTOR"

// Config represents the vhostdoctor configuration
type Config struct {
	SSH     SSHConfig     `mapstructure:"ssh"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Nginx   NginxConfig   `mapstructure:"nginx"`
	Hosts   HostsConfig   `mapstructure:"hosts"`
	State   StateConfig   `mapstructure:"state"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SSHConfig contains connection settings for the diagnosed host
type SSHConfig struct {
	Host                  string        `mapstructure:"host" validate:"omitempty,hostname_rfc1123|ip"`
	Port                  int           `mapstructure:"port" validate:"min=1,max=65535"`
	User                  string        `mapstructure:"user" validate:"required"`
	Password              string        `mapstructure:"password"`
	KeyFile               string        `mapstructure:"key_file"`
	KnownHostsFile        string        `mapstructure:"known_hosts_file"`
	InsecureIgnoreHostKey bool          `mapstructure:"insecure_ignore_host_key"`
	Timeout               time.Duration `mapstructure:"timeout" validate:"gt=0"`
	CommandTimeout        time.Duration `mapstructure:"command_timeout" validate:"gte=0"`
}

// PathsConfig contains the panel layout on the remote host
type PathsConfig struct {
	VhostDir  string `mapstructure:"vhost_dir" validate:"required,startswith=/"`
	CertDir   string `mapstructure:"cert_dir" validate:"required,startswith=/"`
	HostsFile string `mapstructure:"hosts_file" validate:"required,startswith=/"`
	WebRoot   string `mapstructure:"web_root" validate:"required,startswith=/"`
	LogDir    string `mapstructure:"log_dir" validate:"required,startswith=/"`
}

// NginxConfig contains the commands run against nginx
type NginxConfig struct {
	TestCommand    string `mapstructure:"test_command" validate:"required"`
	RestartCommand string `mapstructure:"restart_command" validate:"required"`
	PHPSocket      string `mapstructure:"php_socket" validate:"required"`
	// ProbeServed checks the certificate nginx presents with openssl s_client
	ProbeServed bool `mapstructure:"probe_served"`
}

// HostsConfig contains hosts file policy
type HostsConfig struct {
	// ProblemDomains must never map to loopback
	ProblemDomains []string `mapstructure:"problem_domains" validate:"dive,hostname_rfc1123"`
}

// StateConfig contains local progress tracking settings
type StateConfig struct {
	Dir           string `mapstructure:"dir" validate:"required"`
	RetentionDays int    `mapstructure:"retention_days" validate:"min=1"`
}

// LoggingConfig contains log settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// Load reads the config file at path, then environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return Decode(v)
}

// Decode builds a validated config from v, filling unset values with defaults
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)
	cfg.expand()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		SSH: SSHConfig{
			Port:           22,
			User:           "root",
			KnownHostsFile: "~/.ssh/known_hosts",
			Timeout:        30 * time.Second,
			CommandTimeout: 2 * time.Minute,
		},
		Paths: PathsConfig{
			VhostDir:  "/www/server/panel/vhost/nginx",
			CertDir:   "/www/server/panel/vhost/cert",
			HostsFile: "/etc/hosts",
			WebRoot:   "/www/wwwroot",
			LogDir:    "/www/wwwlogs",
		},
		Nginx: NginxConfig{
			TestCommand:    "nginx -t",
			RestartCommand: "systemctl restart nginx",
			PHPSocket:      "unix:/tmp/php-cgi-74.sock",
			ProbeServed:    true,
		},
		Hosts: HostsConfig{
			ProblemDomains: []string{},
		},
		State: StateConfig{
			Dir:           "~/.vhostdoctor/state",
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   "~/.vhostdoctor/vhostdoctor.log",
			Format: "json",
		},
	}
}

// setDefaults registers every key so environment overrides apply even when
// the file does not mention them
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("ssh.host", d.SSH.Host)
	v.SetDefault("ssh.port", d.SSH.Port)
	v.SetDefault("ssh.user", d.SSH.User)
	v.SetDefault("ssh.password", d.SSH.Password)
	v.SetDefault("ssh.key_file", d.SSH.KeyFile)
	v.SetDefault("ssh.known_hosts_file", d.SSH.KnownHostsFile)
	v.SetDefault("ssh.insecure_ignore_host_key", d.SSH.InsecureIgnoreHostKey)
	v.SetDefault("ssh.timeout", d.SSH.Timeout)
	v.SetDefault("ssh.command_timeout", d.SSH.CommandTimeout)

	v.SetDefault("paths.vhost_dir", d.Paths.VhostDir)
	v.SetDefault("paths.cert_dir", d.Paths.CertDir)
	v.SetDefault("paths.hosts_file", d.Paths.HostsFile)
	v.SetDefault("paths.web_root", d.Paths.WebRoot)
	v.SetDefault("paths.log_dir", d.Paths.LogDir)

	v.SetDefault("nginx.test_command", d.Nginx.TestCommand)
	v.SetDefault("nginx.restart_command", d.Nginx.RestartCommand)
	v.SetDefault("nginx.php_socket", d.Nginx.PHPSocket)
	v.SetDefault("nginx.probe_served", d.Nginx.ProbeServed)

	v.SetDefault("hosts.problem_domains", d.Hosts.ProblemDomains)

	v.SetDefault("state.dir", d.State.Dir)
	v.SetDefault("state.retention_days", d.State.RetentionDays)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.format", d.Logging.Format)
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.SSH.Port == 0 {
		cfg.SSH.Port = defaults.SSH.Port
	}
	if cfg.SSH.User == "" {
		cfg.SSH.User = defaults.SSH.User
	}
	if cfg.SSH.Timeout == 0 {
		cfg.SSH.Timeout = defaults.SSH.Timeout
	}
	if cfg.Paths.VhostDir == "" {
		cfg.Paths.VhostDir = defaults.Paths.VhostDir
	}
	if cfg.Paths.CertDir == "" {
		cfg.Paths.CertDir = defaults.Paths.CertDir
	}
	if cfg.Paths.HostsFile == "" {
		cfg.Paths.HostsFile = defaults.Paths.HostsFile
	}
	if cfg.Paths.WebRoot == "" {
		cfg.Paths.WebRoot = defaults.Paths.WebRoot
	}
	if cfg.Paths.LogDir == "" {
		cfg.Paths.LogDir = defaults.Paths.LogDir
	}
	if cfg.Nginx.TestCommand == "" {
		cfg.Nginx.TestCommand = defaults.Nginx.TestCommand
	}
	if cfg.Nginx.RestartCommand == "" {
		cfg.Nginx.RestartCommand = defaults.Nginx.RestartCommand
	}
	if cfg.Nginx.PHPSocket == "" {
		cfg.Nginx.PHPSocket = defaults.Nginx.PHPSocket
	}
	if cfg.State.Dir == "" {
		cfg.State.Dir = defaults.State.Dir
	}
	if cfg.State.RetentionDays == 0 {
		cfg.State.RetentionDays = defaults.State.RetentionDays
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)

	// VHOSTDOCTOR_HOSTS_PROBLEM_DOMAINS arrives as one space-separated string
	if len(cfg.Hosts.ProblemDomains) == 1 && strings.ContainsAny(cfg.Hosts.ProblemDomains[0], " ,") {
		cfg.Hosts.ProblemDomains = strings.FieldsFunc(cfg.Hosts.ProblemDomains[0], func(r rune) bool {
			return r == ' ' || r == ','
		})
	}
}

func (c *Config) expand() {
	c.SSH.KeyFile = utils.ExpandHome(c.SSH.KeyFile)
	c.SSH.KnownHostsFile = utils.ExpandHome(c.SSH.KnownHostsFile)
	c.State.Dir = utils.ExpandHome(c.State.Dir)
	c.Logging.File = utils.ExpandHome(c.Logging.File)
}

var validate = validator.New()

// Validate checks field constraints and reports every violation
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ve := &types.ValidationErrors{}
	for _, fe := range fieldErrs {
		expected := fe.Tag()
		if fe.Param() != "" {
			expected += "=" + fe.Param()
		}
		ve.Add(configKey(fe.Namespace()), expected, fe.Value(), "must satisfy "+expected)
	}
	return ve
}

// configKey turns "Config.SSH.Port" into "ssh.port" for messages
func configKey(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToLower(strings.Join(parts, "."))
}

// RequireHost fails when no SSH host is configured
func (c *Config) RequireHost() error {
	if c.SSH.Host == "" {
		return fmt.Errorf("no SSH host configured (set ssh.host or %s_SSH_HOST)", EnvPrefix)
	}
	return nil
}

// RemoteSSH converts the ssh section for the remote package
func (c *Config) RemoteSSH() remote.SSHConfig {
	return remote.SSHConfig{
		Host:                  c.SSH.Host,
		Port:                  c.SSH.Port,
		User:                  c.SSH.User,
		Password:              c.SSH.Password,
		KeyFile:               c.SSH.KeyFile,
		KnownHostsFile:        c.SSH.KnownHostsFile,
		InsecureIgnoreHostKey: c.SSH.InsecureIgnoreHostKey,
		Timeout:               c.SSH.Timeout,
		CommandTimeout:        c.SSH.CommandTimeout,
	}
}
