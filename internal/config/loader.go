package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"
)

const (
	configDir  = ".minadb"
	configFile = "config"
	configType = "yaml"

	keyringService = "minadb"
)

// Defaults applied to missing preferences.
const (
	DefaultTheme    = "default"
	DefaultMaxRows  = 1000
	DefaultLogLevel = "info"
)

// DefaultDir returns ~/.minadb.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(configFile)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)

	v.SetDefault("preferences.theme", DefaultTheme)
	v.SetDefault("preferences.max_rows", DefaultMaxRows)
	v.SetDefault("preferences.log_level", DefaultLogLevel)
	v.SetDefault("preferences.fetch_timeout", "0s")
	v.SetDefault("preferences.synthesize_schema", true)

	return v
}

// Load reads dir/config.yaml. A missing file yields the defaults.
func Load(dir string) (*Config, error) {
	v := newViper(dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to dir/config.yaml.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	v := newViper(dir)
	v.Set("connections", cfg.Connections)
	v.Set("preferences", cfg.Preferences)

	path := filepath.Join(dir, configFile+"."+configType)
	return v.WriteConfigAs(path)
}

// SaveConnection stores conn's password in the keyring, adds the profile
// and writes the config.
func SaveConnection(dir string, cfg *Config, conn Connection) error {
	if conn.Password != "" {
		if err := SavePassword(conn.Name, conn.Password); err != nil {
			return err
		}
		conn.Password = ""
	}
	cfg.AddConnection(conn)
	return Save(dir, cfg)
}

// SavePassword stores the password of the named connection.
func SavePassword(name, password string) error {
	if err := keyring.Set(keyringService, name, password); err != nil {
		return fmt.Errorf("store password for %s: %w", name, err)
	}
	return nil
}

// LoadPassword fills conn.Password from the keyring. A connection without
// a stored password is left unchanged.
func LoadPassword(conn *Connection) error {
	password, err := keyring.Get(keyringService, conn.Name)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("load password for %s: %w", conn.Name, err)
	}
	conn.Password = password
	return nil
}

// DefaultConnection returns the default connection from config, or the first one.
func DefaultConnection(cfg *Config) *Connection {
	if len(cfg.Connections) == 0 {
		return nil
	}

	if cfg.Preferences.DefaultConnection != "" {
		for i := range cfg.Connections {
			if cfg.Connections[i].Name == cfg.Preferences.DefaultConnection {
				return &cfg.Connections[i]
			}
		}
	}

	return &cfg.Connections[0]
}
