package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Platform values for ServerConfig.Platform.
const (
	PlatformPOSIX   = "posix"
	PlatformWindows = "windows"
)

type Config struct {
	Defaults Defaults       `yaml:"defaults" toml:"defaults"`
	Servers  []ServerConfig `yaml:"servers" toml:"servers"`
}

// Defaults apply to every server that does not set its own value. Each
// field can be overridden from the environment with a REMOTEFS_ prefix,
// e.g. REMOTEFS_TIMEOUT=30s.
type Defaults struct {
	SSHKey          string        `yaml:"ssh_key" toml:"ssh_key" envconfig:"SSH_KEY"`
	SSHPort         int           `yaml:"ssh_port" toml:"ssh_port" envconfig:"SSH_PORT"`
	Timeout         time.Duration `yaml:"timeout" toml:"timeout" envconfig:"TIMEOUT"`
	ListenAttempts  int           `yaml:"listen_attempts" toml:"listen_attempts" envconfig:"LISTEN_ATTEMPTS"`
	ReconnectBudget *int          `yaml:"reconnect_budget" toml:"reconnect_budget" envconfig:"RECONNECT_BUDGET"`
	SSHWorkers      int           `yaml:"ssh_workers" toml:"ssh_workers" envconfig:"SSH_WORKERS"`
	SFTPWorkers     int           `yaml:"sftp_workers" toml:"sftp_workers" envconfig:"SFTP_WORKERS"`
	CatPath         string        `yaml:"cat_path" toml:"cat_path" envconfig:"CAT_PATH"`
	CatMaxAgeHours  int           `yaml:"cat_max_age_hours" toml:"cat_max_age_hours" envconfig:"CAT_MAX_AGE_HOURS"`
	TempPath        string        `yaml:"temp_path" toml:"temp_path" envconfig:"TEMP_PATH"`
	Binaries        Binaries      `yaml:"binaries" toml:"binaries" envconfig:"BIN"`
}

// Binaries names the client executables driven as subprocesses.
type Binaries struct {
	SSH   string `yaml:"ssh" toml:"ssh" envconfig:"SSH"`
	SFTP  string `yaml:"sftp" toml:"sftp" envconfig:"SFTP"`
	Plink string `yaml:"plink" toml:"plink" envconfig:"PLINK"`
	PSFTP string `yaml:"psftp" toml:"psftp" envconfig:"PSFTP"`
}

type ServerConfig struct {
	Name              string        `yaml:"name" toml:"name"`
	Host              string        `yaml:"host" toml:"host"`
	Port              int           `yaml:"port" toml:"port"`
	User              string        `yaml:"user" toml:"user"`
	Auth              AuthConfig    `yaml:"auth" toml:"auth"`
	Platform          string        `yaml:"platform" toml:"platform"`
	PromptContains    string        `yaml:"prompt_contains" toml:"prompt_contains"`
	Root              string        `yaml:"root" toml:"root"`
	CatPath           string        `yaml:"cat_path" toml:"cat_path"`
	CatExcludeFolders []string      `yaml:"cat_exclude_folders" toml:"cat_exclude_folders"`
	CatMaxAgeHours    int           `yaml:"cat_max_age_hours" toml:"cat_max_age_hours"`
	TempPath          string        `yaml:"temp_path" toml:"temp_path"`
	Timeout           time.Duration `yaml:"timeout" toml:"timeout"`
	TTY               bool          `yaml:"tty" toml:"tty"`
	Binaries          Binaries      `yaml:"-" toml:"-"`
}

type AuthConfig struct {
	Method   string `yaml:"method" toml:"method"` // "key", "password", or "agent"
	KeyPath  string `yaml:"key_path" toml:"key_path"`
	Password string `yaml:"password" toml:"password"`
}

// Identity is the stable key a server is known by across sessions,
// catalogue files and worker rebinding.
func (s ServerConfig) Identity() string {
	return fmt.Sprintf("%s@%s:%d", s.User, s.Host, s.Port)
}

// IsWindows reports whether the server is driven through plink/psftp.
func (s ServerConfig) IsWindows() bool {
	return s.Platform == PlatformWindows
}

// CatMaxAge is the staleness threshold for the persisted catalogue.
func (s ServerConfig) CatMaxAge() time.Duration {
	return time.Duration(s.CatMaxAgeHours) * time.Hour
}

// Server returns the server with the given name.
func (c *Config) Server(name string) (ServerConfig, bool) {
	for _, s := range c.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return ServerConfig{}, false
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".toml"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML (or TOML when isTOML is set), applies environment
// overrides and defaults, and validates the result.
func Parse(data []byte, isTOML bool) (*Config, error) {
	var cfg Config
	if isTOML {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := envconfig.Process("REMOTEFS", &cfg.Defaults); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	d := &cfg.Defaults
	if d.SSHPort == 0 {
		d.SSHPort = 22
	}
	if d.Timeout == 0 {
		d.Timeout = 20 * time.Second
	}
	if d.ListenAttempts == 0 {
		d.ListenAttempts = 20
	}
	if d.ReconnectBudget == nil {
		one := 1
		d.ReconnectBudget = &one
	}
	if d.SSHWorkers == 0 {
		d.SSHWorkers = 1
	}
	if d.SFTPWorkers == 0 {
		d.SFTPWorkers = 1
	}
	if d.CatPath == "" {
		d.CatPath = "~/.cache/remotefs"
	}
	if d.CatMaxAgeHours == 0 {
		d.CatMaxAgeHours = 24
	}
	if d.TempPath == "" {
		d.TempPath = "/tmp"
	}
	if d.Binaries.SSH == "" {
		d.Binaries.SSH = "ssh"
	}
	if d.Binaries.SFTP == "" {
		d.Binaries.SFTP = "sftp"
	}
	if d.Binaries.Plink == "" {
		d.Binaries.Plink = "plink.exe"
	}
	if d.Binaries.PSFTP == "" {
		d.Binaries.PSFTP = "psftp.exe"
	}
	d.SSHKey = expandTilde(d.SSHKey)
	d.CatPath = expandTilde(d.CatPath)

	for i := range cfg.Servers {
		s := &cfg.Servers[i]
		if s.Port == 0 {
			s.Port = d.SSHPort
		}
		if s.Platform == "" {
			s.Platform = PlatformPOSIX
		}
		if s.Auth.Method == "" {
			switch {
			case s.Auth.Password != "":
				s.Auth.Method = "password"
			case d.SSHKey != "":
				s.Auth.Method = "key"
			default:
				s.Auth.Method = "agent"
			}
		}
		// ssh reads passwords from the controlling terminal, never from a pipe.
		if s.Platform == PlatformPOSIX && s.Auth.Method == "password" {
			s.TTY = true
		}
		if s.Auth.Method == "key" && s.Auth.KeyPath == "" {
			s.Auth.KeyPath = d.SSHKey
		}
		s.Auth.KeyPath = expandTilde(s.Auth.KeyPath)
		if s.Root == "" {
			s.Root = "/"
		}
		if s.CatPath == "" {
			s.CatPath = d.CatPath
		}
		s.CatPath = expandTilde(s.CatPath)
		if s.CatMaxAgeHours == 0 {
			s.CatMaxAgeHours = d.CatMaxAgeHours
		}
		if s.TempPath == "" {
			s.TempPath = d.TempPath
		}
		if s.Timeout == 0 {
			s.Timeout = d.Timeout
		}
		s.Binaries = d.Binaries
	}
}

func validate(cfg *Config) error {
	if len(cfg.Servers) == 0 {
		return fmt.Errorf("no servers defined")
	}
	seen := make(map[string]bool)
	for i, s := range cfg.Servers {
		if s.Host == "" {
			return fmt.Errorf("server %d: host is required", i)
		}
		if s.User == "" {
			return fmt.Errorf("server %d (%s): user is required", i, s.Host)
		}
		if s.Name == "" {
			cfg.Servers[i].Name = fmt.Sprintf("%s@%s", s.User, s.Host)
		}
		name := cfg.Servers[i].Name
		if seen[name] {
			return fmt.Errorf("server %d (%s): duplicate name", i, name)
		}
		seen[name] = true
		switch s.Auth.Method {
		case "key", "password", "agent":
		default:
			return fmt.Errorf("server %d (%s): unknown auth method %q", i, s.Host, s.Auth.Method)
		}
		switch s.Platform {
		case PlatformPOSIX, PlatformWindows:
		default:
			return fmt.Errorf("server %d (%s): unknown platform %q", i, s.Host, s.Platform)
		}
	}
	return nil
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
