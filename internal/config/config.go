// Package config handles configuration management using Viper
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Device  DeviceConfig  `mapstructure:"device"`
	Pool    PoolConfig    `mapstructure:"pool"`
	Screen  ScreenConfig  `mapstructure:"screen"`
	IPC     IPCConfig     `mapstructure:"ipc"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// DeviceConfig locates the framebuffer and the DSS sysfs trees
type DeviceConfig struct {
	FB           string   `mapstructure:"fb"`             // Framebuffer device node
	DSSRoot      string   `mapstructure:"dss_root"`       // omapdss sysfs directory
	FBRoot       string   `mapstructure:"fb_root"`        // omapfb graphics sysfs directory
	CtrlNamePath string   `mapstructure:"ctrl_name_path"` // LCD controller name attribute
	AllowedIDs   []string `mapstructure:"allowed_ids"`    // Accepted framebuffer driver ids
}

// PoolConfig bounds discovery and selects display name matching
type PoolConfig struct {
	MaxFramebuffers int    `mapstructure:"max_framebuffers"`
	MaxOverlays     int    `mapstructure:"max_overlays"`
	MaxManagers     int    `mapstructure:"max_managers"`
	MaxDisplays     int    `mapstructure:"max_displays"`
	NameMatch       string `mapstructure:"name_match"` // "exact" or "prefix"

	// Minimum counts the board must provide, 0 to only require one of each
	ExpectFramebuffers int `mapstructure:"expect_framebuffers"`
	ExpectOverlays     int `mapstructure:"expect_overlays"`
	ExpectManagers     int `mapstructure:"expect_managers"`
}

// ScreenConfig bounds the virtual screen size
type ScreenConfig struct {
	MinWidth  int `mapstructure:"min_width"`
	MinHeight int `mapstructure:"min_height"`
	MaxWidth  int `mapstructure:"max_width"`
	MaxHeight int `mapstructure:"max_height"`
}

// IPCConfig contains control socket settings
type IPCConfig struct {
	SocketPath string `mapstructure:"socket_path"` // Empty means /tmp/omapdss-<user>.sock
	TimeoutMS  int    `mapstructure:"timeout_ms"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Device: DeviceConfig{
			FB:           "/dev/fb0",
			DSSRoot:      "/sys/devices/platform/omapdss",
			FBRoot:       "/sys/devices/platform/omapfb/graphics",
			CtrlNamePath: "/sys/devices/platform/omapfb/ctrl/name",
			AllowedIDs:   []string{"omapfb", "omap24xxfb"},
		},
		Pool: PoolConfig{
			MaxFramebuffers: 5,
			MaxOverlays:     10,
			MaxManagers:     10,
			MaxDisplays:     10,
			NameMatch:       "exact",
		},
		Screen: ScreenConfig{
			MinWidth:  8,
			MinHeight: 8,
			MaxWidth:  2048,
			MaxHeight: 2048,
		},
		IPC: IPCConfig{
			SocketPath: "",
			TimeoutMS:  5000,
		},
		Logging: LoggingConfig{
			LogLevel: "", // Empty means use LOG_LEVEL env var
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("omapdss")
	viper.SetConfigType("toml")

	// If a specific path is set, use only that
	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		viper.AddConfigPath("/etc/omapdss")

		// If running with sudo, try the real user's config
		if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
			viper.AddConfigPath(fmt.Sprintf("/home/%s/.config/omapdss", sudoUser))
		} else if home := os.Getenv("HOME"); home != "" && home != "/root" {
			viper.AddConfigPath(filepath.Join(home, ".config", "omapdss"))
		}

		viper.AddConfigPath(".")
	}

	setDefaults()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}

	cfg = c
	return nil
}

// Individual fields so file values merge over defaults
func setDefaults() {
	viper.SetDefault("device.fb", DefaultConfig.Device.FB)
	viper.SetDefault("device.dss_root", DefaultConfig.Device.DSSRoot)
	viper.SetDefault("device.fb_root", DefaultConfig.Device.FBRoot)
	viper.SetDefault("device.ctrl_name_path", DefaultConfig.Device.CtrlNamePath)
	viper.SetDefault("device.allowed_ids", DefaultConfig.Device.AllowedIDs)

	viper.SetDefault("pool.max_framebuffers", DefaultConfig.Pool.MaxFramebuffers)
	viper.SetDefault("pool.max_overlays", DefaultConfig.Pool.MaxOverlays)
	viper.SetDefault("pool.max_managers", DefaultConfig.Pool.MaxManagers)
	viper.SetDefault("pool.max_displays", DefaultConfig.Pool.MaxDisplays)
	viper.SetDefault("pool.name_match", DefaultConfig.Pool.NameMatch)
	viper.SetDefault("pool.expect_framebuffers", DefaultConfig.Pool.ExpectFramebuffers)
	viper.SetDefault("pool.expect_overlays", DefaultConfig.Pool.ExpectOverlays)
	viper.SetDefault("pool.expect_managers", DefaultConfig.Pool.ExpectManagers)

	viper.SetDefault("screen.min_width", DefaultConfig.Screen.MinWidth)
	viper.SetDefault("screen.min_height", DefaultConfig.Screen.MinHeight)
	viper.SetDefault("screen.max_width", DefaultConfig.Screen.MaxWidth)
	viper.SetDefault("screen.max_height", DefaultConfig.Screen.MaxHeight)

	viper.SetDefault("ipc.socket_path", DefaultConfig.IPC.SocketPath)
	viper.SetDefault("ipc.timeout_ms", DefaultConfig.IPC.TimeoutMS)

	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)
}

// Validate rejects values the driver cannot start with
func (c *Config) Validate() error {
	switch strings.ToLower(c.Pool.NameMatch) {
	case "", "exact", "prefix":
	default:
		return fmt.Errorf("pool.name_match must be exact or prefix, got %q", c.Pool.NameMatch)
	}
	if c.Pool.MaxFramebuffers < 1 || c.Pool.MaxOverlays < 1 || c.Pool.MaxManagers < 1 {
		return fmt.Errorf("pool limits must be positive")
	}
	if c.Screen.MinWidth > c.Screen.MaxWidth || c.Screen.MinHeight > c.Screen.MaxHeight {
		return fmt.Errorf("screen minimum %dx%d exceeds maximum %dx%d",
			c.Screen.MinWidth, c.Screen.MinHeight, c.Screen.MaxWidth, c.Screen.MaxHeight)
	}
	if c.Device.FB == "" {
		return fmt.Errorf("device.fb must be set")
	}
	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Save saves the current configuration to file
func Save() error {
	return SaveAs(GetConfigPath())
}

// SaveAs writes the current viper settings, defaults included, to path
func SaveAs(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		// If we can't create it (e.g., /etc/omapdss needs sudo), provide helpful message
		if os.IsPermission(err) && strings.Contains(configPath, "/etc/") {
			return fmt.Errorf("failed to create config directory %s: permission denied. Try running with sudo", dir)
		}
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	// The driver runs as root, prefer the system config
	if os.Getuid() == 0 || os.Getenv("SUDO_USER") != "" {
		return "/etc/omapdss/omapdss.toml"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/omapdss/omapdss.toml"
	}

	return filepath.Join(home, ".config", "omapdss", "omapdss.toml")
}
