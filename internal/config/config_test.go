package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetConfig(t *testing.T, path string) {
	t.Helper()
	viper.Reset()
	cfg = nil
	SetConfigPath(path)
	t.Cleanup(func() {
		viper.Reset()
		cfg = nil
		SetConfigPath("")
	})
}

func TestInit(t *testing.T) {
	t.Run("initializes with defaults when no config exists", func(t *testing.T) {
		resetConfig(t, "")
		t.Setenv("SUDO_USER", "")
		t.Setenv("HOME", t.TempDir())
		t.Chdir(t.TempDir())

		require.NoError(t, Init())
		c := Get()
		assert.Equal(t, "/dev/fb0", c.Device.FB)
		assert.Equal(t, 10, c.Pool.MaxOverlays)
		assert.Equal(t, "exact", c.Pool.NameMatch)
	})

	t.Run("merges file values over defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "omapdss.toml")
		require.NoError(t, os.WriteFile(path, []byte(`
[device]
fb = "/dev/fb1"

[pool]
max_overlays = 3
name_match = "prefix"

[screen]
max_width = 1920
`), 0644))
		resetConfig(t, path)

		require.NoError(t, Init())
		c := Get()

		assert.Equal(t, "/dev/fb1", c.Device.FB)
		assert.Equal(t, DefaultConfig.Device.DSSRoot, c.Device.DSSRoot)
		assert.Equal(t, []string{"omapfb", "omap24xxfb"}, c.Device.AllowedIDs)
		assert.Equal(t, 3, c.Pool.MaxOverlays)
		assert.Equal(t, 5, c.Pool.MaxFramebuffers)
		assert.Equal(t, "prefix", c.Pool.NameMatch)
		assert.Equal(t, 1920, c.Screen.MaxWidth)
		assert.Equal(t, 2048, c.Screen.MaxHeight)
		assert.Equal(t, 5000, c.IPC.TimeoutMS)
	})

	t.Run("rejects invalid TOML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "omapdss.toml")
		require.NoError(t, os.WriteFile(path, []byte("[pool\nmax_overlays = 3"), 0644))
		resetConfig(t, path)

		assert.Error(t, Init())
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "omapdss.toml")
		require.NoError(t, os.WriteFile(path, []byte("[pool]\nname_match = \"fuzzy\"\n"), 0644))
		resetConfig(t, path)

		err := Init()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name_match")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"prefix match", func(c *Config) { c.Pool.NameMatch = "Prefix" }, true},
		{"zero overlays", func(c *Config) { c.Pool.MaxOverlays = 0 }, false},
		{"inverted screen", func(c *Config) { c.Screen.MinWidth = 4096 }, false},
		{"no device", func(c *Config) { c.Device.FB = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSaveAs(t *testing.T) {
	resetConfig(t, "")
	setDefaults()

	path := filepath.Join(t.TempDir(), "nested", "omapdss.toml")
	require.NoError(t, SaveAs(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "max_overlays")
	assert.Contains(t, string(data), "/dev/fb0")
}

func TestGetConfigPath(t *testing.T) {
	t.Run("override wins", func(t *testing.T) {
		resetConfig(t, "/tmp/custom.toml")
		assert.Equal(t, "/tmp/custom.toml", GetConfigPath())
	})

	t.Run("default location", func(t *testing.T) {
		resetConfig(t, "")
		path := GetConfigPath()
		assert.True(t, filepath.Base(path) == "omapdss.toml", path)
	})
}

func TestGetBeforeInit(t *testing.T) {
	resetConfig(t, "")
	assert.Equal(t, &DefaultConfig, Get())
}

func TestInitMissingOverrideUsesDefaults(t *testing.T) {
	resetConfig(t, filepath.Join(t.TempDir(), "absent.toml"))

	require.NoError(t, Init())
	assert.Equal(t, DefaultConfig.Pool.MaxOverlays, Get().Pool.MaxOverlays)
}
