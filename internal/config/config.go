package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name used for config files and directories
	AppName = "skillet"

	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "SKILLET"
)

// AppConfig holds the application configuration. Connector
// credentials live here (or in the environment), never inside a
// recipe document.
type AppConfig struct {
	// Core settings
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	// Engine settings
	Engine struct {
		// Upper bound on concurrent per-row connector calls inside
		// a single step (classify etc.)
		RowConcurrency int `mapstructure:"row_concurrency"`
	} `mapstructure:"engine"`

	// Connector credential bundles, keyed by connector name
	Connectors struct {
		Postgres struct {
			DSN string `mapstructure:"dsn"`
		} `mapstructure:"postgres"`

		ObjectStore struct {
			Endpoint  string `mapstructure:"endpoint"`
			AccessKey string `mapstructure:"access_key"`
			SecretKey string `mapstructure:"secret_key"`
			Region    string `mapstructure:"region"`
			UseSSL    bool   `mapstructure:"use_ssl"`
			Bucket    string `mapstructure:"bucket"`
		} `mapstructure:"objectstore"`

		Inference struct {
			Endpoint string `mapstructure:"endpoint"`
			APIKey   string `mapstructure:"api_key"`
			Timeout  int    `mapstructure:"timeout"` // seconds
			Retries  int    `mapstructure:"retries"`
		} `mapstructure:"inference"`
	} `mapstructure:"connectors"`
}

// Global variables
var (
	// Global configuration instance
	Instance AppConfig

	// Status indicators
	ConfigLoaded bool
	ConfigFile   string

	// Viper instance
	v *viper.Viper

	// Ensure thread safety
	initOnce sync.Once
)

// Initialize sets up the configuration system
func Initialize(cfgFile string) error {
	var err error

	initOnce.Do(func() {
		v = viper.New()

		setDefaults(v)

		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		} else {
			v.SetConfigName(AppName)
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
			v.AddConfigPath("$HOME/.config/" + AppName)
			v.AddConfigPath("/etc/" + AppName)
		}

		// Set up environment variables
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		v.AutomaticEnv()

		// Read configuration file
		if readErr := v.ReadInConfig(); readErr != nil {
			if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
				// Only capture error if the config file was found but couldn't be read
				err = fmt.Errorf("error reading config file: %w", readErr)
			}
			// Config file not found, using defaults and environment variables
			ConfigLoaded = false
			ConfigFile = ""
		} else {
			ConfigLoaded = true
			ConfigFile = v.ConfigFileUsed()
		}

		// Unmarshal config into struct
		if unmarshalErr := v.Unmarshal(&Instance); unmarshalErr != nil {
			err = fmt.Errorf("error parsing config: %w", unmarshalErr)
		}
	})

	return err
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "human")
	v.SetDefault("log_file", "")

	v.SetDefault("engine.row_concurrency", 8)

	v.SetDefault("connectors.postgres.dsn", "")
	v.SetDefault("connectors.objectstore.endpoint", "localhost:9000")
	v.SetDefault("connectors.objectstore.region", "us-east-1")
	v.SetDefault("connectors.objectstore.use_ssl", false)
	v.SetDefault("connectors.inference.endpoint", "")
	v.SetDefault("connectors.inference.timeout", 30)
	v.SetDefault("connectors.inference.retries", 3)
}

// CredentialBundle returns the opaque credential map for a connector
// name. The engine passes it unmodified to the connector's Open.
func CredentialBundle(name string) map[string]interface{} {
	switch name {
	case "postgres":
		return map[string]interface{}{
			"dsn": Instance.Connectors.Postgres.DSN,
		}
	case "objectstore":
		os := Instance.Connectors.ObjectStore
		return map[string]interface{}{
			"endpoint":   os.Endpoint,
			"access_key": os.AccessKey,
			"secret_key": os.SecretKey,
			"region":     os.Region,
			"use_ssl":    os.UseSSL,
			"bucket":     os.Bucket,
		}
	case "inference":
		inf := Instance.Connectors.Inference
		return map[string]interface{}{
			"endpoint": inf.Endpoint,
			"api_key":  inf.APIKey,
			"timeout":  inf.Timeout,
			"retries":  inf.Retries,
		}
	default:
		return map[string]interface{}{}
	}
}
