package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/shadowcap/internal/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides (SHADOWCAP_CAPTURE_SAMPLER, ...)
const EnvPrefix = "SHADOWCAP"

// MarginsConfig holds the default capture margins in pixels
type MarginsConfig struct {
	Left   int `json:"left" yaml:"left" mapstructure:"left"`
	Top    int `json:"top" yaml:"top" mapstructure:"top"`
	Right  int `json:"right" yaml:"right" mapstructure:"right"`
	Bottom int `json:"bottom" yaml:"bottom" mapstructure:"bottom"`
}

// CaptureConfig holds capture defaults
type CaptureConfig struct {
	Margins     MarginsConfig `json:"margins" yaml:"margins" mapstructure:"margins"`
	Background  string        `json:"background" yaml:"background" mapstructure:"background"`
	Format      string        `json:"format" yaml:"format" mapstructure:"format"`
	JPEGQuality int           `json:"jpeg_quality" yaml:"jpeg_quality" mapstructure:"jpeg_quality"`
	OutputDir   string        `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`
	Sampler     string        `json:"sampler" yaml:"sampler" mapstructure:"sampler"`
	ParkCursor  bool          `json:"park_cursor" yaml:"park_cursor" mapstructure:"park_cursor"`
}

// TimingConfig holds the compositor settle delays and surface wait bounds
type TimingConfig struct {
	ForegroundSettle    time.Duration `json:"foreground_settle" yaml:"foreground_settle" mapstructure:"foreground_settle"`
	RestoreSettle       time.Duration `json:"restore_settle" yaml:"restore_settle" mapstructure:"restore_settle"`
	ResizeSettle        time.Duration `json:"resize_settle" yaml:"resize_settle" mapstructure:"resize_settle"`
	BackdropSettle      time.Duration `json:"backdrop_settle" yaml:"backdrop_settle" mapstructure:"backdrop_settle"`
	PresentSettle       time.Duration `json:"present_settle" yaml:"present_settle" mapstructure:"present_settle"`
	SurfaceReadyTimeout time.Duration `json:"surface_ready_timeout" yaml:"surface_ready_timeout" mapstructure:"surface_ready_timeout"`
	SurfaceJoinTimeout  time.Duration `json:"surface_join_timeout" yaml:"surface_join_timeout" mapstructure:"surface_join_timeout"`
}

// EnumerationConfig controls which windows are offered for capture
type EnumerationConfig struct {
	// ExcludeClasses are class-name substrings of overlay windows to hide
	ExcludeClasses []string `json:"exclude_classes" yaml:"exclude_classes" mapstructure:"exclude_classes"`
}

// Config represents the application configuration
type Config struct {
	LogLevel    string            `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogPretty   bool              `json:"log_pretty" yaml:"log_pretty" mapstructure:"log_pretty"`
	ServerPort  int               `json:"server_port" yaml:"server_port" mapstructure:"server_port"`
	Capture     CaptureConfig     `json:"capture" yaml:"capture" mapstructure:"capture"`
	Timing      TimingConfig      `json:"timing" yaml:"timing" mapstructure:"timing"`
	Enumeration EnumerationConfig `json:"enumeration" yaml:"enumeration" mapstructure:"enumeration"`
}

// Manager handles configuration
type Manager struct {
	configPath string
	v          *viper.Viper
	config     *Config
	mu         sync.RWMutex
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		LogLevel:   "info",
		LogPretty:  true,
		ServerPort: 8080,
		Capture: CaptureConfig{
			Margins:     MarginsConfig{Left: 50, Top: 50, Right: 50, Bottom: 50},
			Background:  "transparent",
			Format:      "png",
			JPEGQuality: 95,
			Sampler:     "auto",
			ParkCursor:  true,
		},
		Timing: TimingConfig{
			ForegroundSettle:    100 * time.Millisecond,
			RestoreSettle:       200 * time.Millisecond,
			ResizeSettle:        100 * time.Millisecond,
			BackdropSettle:      500 * time.Millisecond,
			PresentSettle:       2 * time.Second,
			SurfaceReadyTimeout: 2 * time.Second,
			SurfaceJoinTimeout:  time.Second,
		},
		Enumeration: EnumerationConfig{
			ExcludeClasses: []string{"Grammarly.Desktop.exe"},
		},
	}
}

// DefaultPath returns $HOME/.config/shadowcap/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "shadowcap", "config.yaml"), nil
}

// NewManager creates a new configuration manager
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		actualConfigPath = p
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Int("exclude_classes", len(m.config.Enumeration.ExcludeClasses)).
		Msg("Config loaded")

	return m, nil
}

// load reads the configuration file through viper so that SHADOWCAP_* env vars
// take precedence over the file and the defaults fill any missing key.
func (m *Manager) load() error {
	v := viper.New()
	v.SetConfigFile(m.configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Defaults())

	if err := v.ReadInConfig(); err != nil {
		return err
	}

	m.mu.Lock()
	m.v = v
	m.mu.Unlock()

	return m.refresh()
}

// refresh re-decodes the viper state into the typed config
func (m *Manager) refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Enumeration.ExcludeClasses == nil {
		cfg.Enumeration.ExcludeClasses = []string{}
	}
	m.config = &cfg
	return nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_pretty", d.LogPretty)
	v.SetDefault("server_port", d.ServerPort)
	v.SetDefault("capture.margins.left", d.Capture.Margins.Left)
	v.SetDefault("capture.margins.top", d.Capture.Margins.Top)
	v.SetDefault("capture.margins.right", d.Capture.Margins.Right)
	v.SetDefault("capture.margins.bottom", d.Capture.Margins.Bottom)
	v.SetDefault("capture.background", d.Capture.Background)
	v.SetDefault("capture.format", d.Capture.Format)
	v.SetDefault("capture.jpeg_quality", d.Capture.JPEGQuality)
	v.SetDefault("capture.output_dir", d.Capture.OutputDir)
	v.SetDefault("capture.sampler", d.Capture.Sampler)
	v.SetDefault("capture.park_cursor", d.Capture.ParkCursor)
	v.SetDefault("timing.foreground_settle", d.Timing.ForegroundSettle)
	v.SetDefault("timing.restore_settle", d.Timing.RestoreSettle)
	v.SetDefault("timing.resize_settle", d.Timing.ResizeSettle)
	v.SetDefault("timing.backdrop_settle", d.Timing.BackdropSettle)
	v.SetDefault("timing.present_settle", d.Timing.PresentSettle)
	v.SetDefault("timing.surface_ready_timeout", d.Timing.SurfaceReadyTimeout)
	v.SetDefault("timing.surface_join_timeout", d.Timing.SurfaceJoinTimeout)
	v.SetDefault("enumeration.exclude_classes", d.Enumeration.ExcludeClasses)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}

	cfg := *m.config
	cfg.Enumeration.ExcludeClasses = append([]string{}, m.config.Enumeration.ExcludeClasses...)
	return &cfg
}

// GetViper returns the viper instance backing this manager
func (m *Manager) GetViper() *viper.Viper {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v
}

// Override sets a value for this process only; it is written to disk only if
// Save is called afterwards.
func (m *Manager) Override(key string, value interface{}) error {
	m.mu.Lock()
	m.v.Set(key, value)
	m.mu.Unlock()
	return m.refresh()
}

// Set parses a string value according to the type of the existing key,
// applies it and saves the configuration.
func (m *Manager) Set(key, value string) error {
	m.mu.RLock()
	known := false
	for _, k := range m.v.AllKeys() {
		if k == key {
			known = true
			break
		}
	}
	current := m.v.Get(key)
	m.mu.RUnlock()

	if !known {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	var parsed interface{}
	switch key {
	case "log_level":
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[value] {
			return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", value)
		}
		parsed = value
	case "capture.sampler":
		if value != "auto" && value != "native" && value != "screenshot" && value != "portal" {
			return fmt.Errorf("invalid sampler: %s (use: auto, native, screenshot, portal)", value)
		}
		parsed = value
	default:
		var err error
		parsed, err = parseLike(current, value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}

	if err := m.Override(key, parsed); err != nil {
		return err
	}
	return m.Save()
}

// parseLike converts value into the Go type of current
func parseLike(current interface{}, value string) (interface{}, error) {
	switch current.(type) {
	case time.Duration:
		return time.ParseDuration(value)
	case int, int64:
		return strconv.Atoi(value)
	case bool:
		return strconv.ParseBool(value)
	case []string, []interface{}:
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	case string:
		// Durations read back from YAML are strings until decoded.
		if _, err := time.ParseDuration(current.(string)); err == nil {
			if _, err := time.ParseDuration(value); err != nil {
				return nil, err
			}
		}
		return value, nil
	default:
		return value, nil
	}
}

// Save saves the current configuration to disk
func (m *Manager) Save() error {
	cfg := m.Get()

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Saving config")

	configDir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("config_dir", configDir).
			Msg("Failed to create config directory")
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.WithComponent("config").Error().
			Err(err).
			Str("path", m.configPath).
			Msg("Failed to write config")
		return err
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config saved successfully")
	return nil
}

// AddExcludedClass adds a class-name substring to the enumeration exclusion list
func (m *Manager) AddExcludedClass(class string) error {
	class = strings.TrimSpace(class)
	if class == "" {
		return fmt.Errorf("class must not be empty")
	}
	classes := m.Get().Enumeration.ExcludeClasses
	for _, existing := range classes {
		if existing == class {
			return nil
		}
	}
	if err := m.Override("enumeration.exclude_classes", append(classes, class)); err != nil {
		return err
	}
	return m.Save()
}

// RemoveExcludedClass removes a class-name substring from the exclusion list
func (m *Manager) RemoveExcludedClass(class string) error {
	classes := m.Get().Enumeration.ExcludeClasses
	filtered := make([]string, 0, len(classes))
	found := false
	for _, existing := range classes {
		if existing == class {
			found = true
			continue
		}
		filtered = append(filtered, existing)
	}
	if !found {
		return fmt.Errorf("class not in exclusion list: %s", class)
	}
	if err := m.Override("enumeration.exclude_classes", filtered); err != nil {
		return err
	}
	return m.Save()
}

// GetConfigPath returns the path to the config file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetConfigDir returns the config directory path
func (m *Manager) GetConfigDir() string {
	return filepath.Dir(m.configPath)
}
