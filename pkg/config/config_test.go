package config

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestDefaultConfigParses(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeDefaultConfig(&buf))

	var c Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &c))
	require.Empty(t, c.Aliases)
	require.Empty(t, c.Prompt)
	require.True(t, c.HistoryEnabled())
	require.Zero(t, c.KernBase)
	require.False(t, c.Color)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFile)
	data := `aliases:
  backtrace: ["bt", "where"]
prompt: "kmon> "
history: false
symbol-cache-size: 16
kernbase: 0xf0000000
color: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	c, err := loadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"bt", "where"}, c.Aliases["backtrace"])
	require.Equal(t, "kmon> ", c.Prompt)
	require.False(t, c.HistoryEnabled())
	require.Equal(t, 16, c.SymbolCacheSize)
	require.Equal(t, uint32(0xf0000000), c.KernBase)
	require.True(t, c.Color)
}

func TestLoadConfigFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := loadConfigFile(filepath.Join(dir, "missing.yml"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("aliases: [unterminated"), 0600))
	_, err = loadConfigFile(bad)
	require.Error(t, err)
}

func TestConfigFilePath(t *testing.T) {
	p, err := GetConfigFilePath(configFile)
	require.NoError(t, err)
	require.Equal(t, configFile, filepath.Base(p))
	require.Equal(t, configDir, filepath.Base(filepath.Dir(p)))
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("home directory is not taken from $HOME")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)

	p, err := GetConfigFilePath(configFile)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, configDir, configFile), p)

	c := LoadConfig()
	require.NotNil(t, c)
	require.True(t, c.HistoryEnabled())
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	var want bytes.Buffer
	require.NoError(t, writeDefaultConfig(&want))
	require.Equal(t, want.String(), string(data))
}
