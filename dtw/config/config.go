package config

import (
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/devtools-workspace/dtw"

	"github.com/spf13/viper"
)

// Config stores all configuration of the bridge.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Indexer IndexerConfig `mapstructure:"indexer"`
}

// BridgeConfig stores settings for the workspace bridge itself.
type BridgeConfig struct {
	PrefsDBPath    string `mapstructure:"prefsDBPath"`
	DefaultSaveDir string `mapstructure:"defaultSaveDir"`
	Origin         string `mapstructure:"origin"`
	RendererID     int    `mapstructure:"rendererID"`
}

// IndexerConfig stores settings for the content indexer.
type IndexerConfig struct {
	Workers     int    `mapstructure:"workers"`
	MaxFileSize int64  `mapstructure:"maxFileSize"`
	IgnoreFile  string `mapstructure:"ignoreFile"`
	Watch       bool   `mapstructure:"watch"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values
	viper.SetDefault("bridge.prefsDBPath", internal.DefaultPrefsDBPath)
	viper.SetDefault("bridge.defaultSaveDir", internal.DefaultSaveDir)
	viper.SetDefault("bridge.origin", "devtools://devtools")
	viper.SetDefault("bridge.rendererID", 0)
	viper.SetDefault("indexer.workers", 4)
	viper.SetDefault("indexer.maxFileSize", int64(8<<20))
	viper.SetDefault("indexer.ignoreFile", ".gitignore")
	viper.SetDefault("indexer.watch", false)

	viper.AutomaticEnv()                                   // Read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // e.g. bridge.prefsDBPath becomes BRIDGE_PREFSDBPATH

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults will be used. This is not an
			// error for the application to halt on.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}
