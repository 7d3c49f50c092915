package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAttachTimeout  = 10 * time.Second
	defaultConnectTimeout = 3 * time.Second
	defaultAttachRetries  = 1
	defaultAgentAddr      = "127.0.0.1:8778"
	defaultLogLevel       = "warn"
	defaultLogFormat      = "text"

	envPrefix = "AGENTCTL"
)

// Config aggregates tunable timeouts and paths for attaching to targets.
type Config struct {
	// RuntimeDir holds agent markers and control sockets. Empty means the
	// platform default is used.
	RuntimeDir string `mapstructure:"runtime_dir"`

	// AttachTimeout bounds how long the opener waits for a triggered target
	// to bring its control socket up.
	AttachTimeout time.Duration `mapstructure:"attach_timeout"`

	// ConnectTimeout bounds dialing an existing control socket.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// AttachRetries is how many extra attempts follow a transient attach failure.
	AttachRetries int `mapstructure:"attach_retries"`

	// AgentAddr is the management listen address an embedded agent uses when
	// start names none. Read by the agent side, not by the CLI.
	AgentAddr string `mapstructure:"agent_addr"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		AttachTimeout:  defaultAttachTimeout,
		ConnectTimeout: defaultConnectTimeout,
		AttachRetries:  defaultAttachRetries,
		AgentAddr:      defaultAgentAddr,
		Log: LogConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// Load builds a Config from defaults, an optional config file and AGENTCTL_*
// environment overrides. An explicit path must exist; the default search
// locations are optional.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Default(), fmt.Errorf("load config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		for _, dir := range searchDirs() {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Default(), fmt.Errorf("load config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Default(), fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// Validate rejects values the attach path cannot work with.
func (c Config) Validate() error {
	if c.AttachTimeout <= 0 {
		return errors.New("attach_timeout must be > 0")
	}
	if c.ConnectTimeout <= 0 {
		return errors.New("connect_timeout must be > 0")
	}
	if c.AttachRetries < 0 {
		return errors.New("attach_retries must be >= 0")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("runtime_dir", def.RuntimeDir)
	v.SetDefault("attach_timeout", def.AttachTimeout)
	v.SetDefault("connect_timeout", def.ConnectTimeout)
	v.SetDefault("attach_retries", def.AttachRetries)
	v.SetDefault("agent_addr", def.AgentAddr)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
}

func searchDirs() []string {
	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, "agentctl"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "agentctl"))
	}
	return dirs
}
