package config

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".kmon"
	configFile string = "config.yml"
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// Prompt displayed before every command, "K> " if empty.
	Prompt string `yaml:"prompt,omitempty"`

	// History enables loading and saving the command history. Enabled
	// unless explicitly set to false.
	History *bool `yaml:"history,omitempty"`

	// SymbolCacheSize is the number of resolved addresses remembered by the
	// symbol cache.
	SymbolCacheSize int `yaml:"symbol-cache-size,omitempty"`

	// KernBase is the virtual address at which the kernel maps physical
	// memory, 0xf0000000 if unset.
	KernBase uint32 `yaml:"kernbase,omitempty"`

	// Color enables highlighting of function names in backtraces when the
	// output is a terminal.
	Color bool `yaml:"color"`
}

// HistoryEnabled returns true if the command history should be kept.
func (c *Config) HistoryEnabled() bool {
	return c.History == nil || *c.History
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() *Config {
	err := createConfigPath()
	if err != nil {
		fmt.Printf("Could not create config directory: %v.", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Printf("Unable to get config file path: %v.", err)
		return &Config{}
	}

	if _, err := os.Stat(fullConfigFile); os.IsNotExist(err) {
		if err := createDefaultConfig(fullConfigFile); err != nil {
			fmt.Printf("Error creating default config file: %v", err)
			return &Config{}
		}
	}

	c, err := loadConfigFile(fullConfigFile)
	if err != nil {
		fmt.Printf("%v.", err)
		return &Config{}
	}
	return c
}

func loadConfigFile(fullConfigFile string) (*Config, error) {
	f, err := os.Open(fullConfigFile)
	if err != nil {
		return nil, fmt.Errorf("Unable to open config file: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("Unable to read config data: %v", err)
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return nil, fmt.Errorf("Unable to decode config file: %v", err)
	}
	return &c, nil
}

func createDefaultConfig(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create config file: %v", err)
	}
	defer f.Close()
	err = writeDefaultConfig(f)
	if err != nil {
		return fmt.Errorf("unable to write default configuration: %v", err)
	}
	return nil
}

func writeDefaultConfig(f io.Writer) error {
	_, err := io.WriteString(f,
		`# Configuration file for the kmon kernel monitor.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Provided aliases will be added to the default names of a given command.
aliases:
  # command: ["alias1", "alias2"]

# Prompt displayed before every command.
# prompt: "K> "

# Uncomment the following line to stop loading and saving ~/.kmon/history.
# history: false

# Number of return addresses whose symbol lookup is cached.
# symbol-cache-size: 256

# Virtual address at which the kernel maps all of physical memory.
# kernbase: 0xf0000000

# Uncomment the following line to highlight function names in backtraces.
# color: true
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	userHomeDir := "."
	if home, err := os.UserHomeDir(); err == nil {
		userHomeDir = home
	} else if usr, err := user.Current(); err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDir, file), nil
}
