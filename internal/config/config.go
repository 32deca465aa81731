package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/PixPMusic/gopher-osc/internal/midi"
	"github.com/PixPMusic/gopher-osc/internal/osc"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultLogLevel is used when no level is configured
const DefaultLogLevel = "info"

// Config holds application settings
type Config struct {
	MIDIDevice   string        `yaml:"midi_device"`
	HostIP       string        `yaml:"host_ip"`
	HostPort     int           `yaml:"host_port"`
	ListenPort   int           `yaml:"listen_port"`
	LastPreset   string        `yaml:"last_preset,omitempty"`
	LogLevel     string        `yaml:"log_level"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Default returns the settings used when no file exists
func Default() *Config {
	return &Config{
		HostIP:       osc.DefaultHostIP,
		HostPort:     osc.DefaultHostPort,
		ListenPort:   osc.DefaultListenPort,
		LogLevel:     DefaultLogLevel,
		PollInterval: midi.DefaultPollInterval,
	}
}

// configDir returns the platform-appropriate config directory
func configDir() (string, error) {
	configHome, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configHome, "gopher-osc"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config from disk, returning defaults if not found
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom reads the config at path. Missing keys keep their defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Debugf("config: %s not found, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.HostIP == "" {
		c.HostIP = def.HostIP
	}
	if !osc.ValidPort(c.HostPort) {
		c.HostPort = def.HostPort
	}
	if !osc.ValidPort(c.ListenPort) {
		c.ListenPort = def.ListenPort
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
}

// Save writes the config to the default location
func (c *Config) Save() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(configPath)
}

// SaveTo writes the config to path
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "creating config dir")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// ParseLogLevel returns the logrus level for the configured name, falling
// back to info.
func (c *Config) ParseLogLevel() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warnf("config: unknown log level %q, using %s", c.LogLevel, DefaultLogLevel)
		return log.InfoLevel
	}
	return level
}
