package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Configuration validation errors
var (
	ErrInvalidTestFraction = errors.New("split.test_fraction must be in (0, 1)")
	ErrInvalidSource       = errors.New("reference.source must be file or postgres")
	ErrInvalidSourceSplit  = errors.New("reference.source_split must be test or all")
	ErrInvalidK            = errors.New("search.k must be positive")
	ErrInvalidClassifier   = errors.New("classifier.kind must be tree or knn")
	ErrInvalidPort         = errors.New("server.port must be in 1..65535")
	ErrInvalidEventBuffer  = errors.New("server.events.buffer_size must be positive")
	ErrInvalidOutputFormat = errors.New("output.format must be table, text or json")
	ErrInvalidOutputOrder  = errors.New("output.order must be desc, asc or none")
	ErrInvalidLogLevel     = errors.New("logging.level must be debug, info, warn, or error")
	ErrInvalidLogFormat    = errors.New("logging.format must be json or console")
)

// Load loads configuration from file, .env and environment variables.
// Precedence: environment, config file, defaults.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setViperDefaults(v, "", reflect.ValueOf(*GetDefaults()))

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/wellmatch/")
	v.AddConfigPath("$HOME/.wellmatch/")

	v.SetEnvPrefix("WELLMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.v = v

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Watch re-reads the configuration file on change and passes every valid
// new configuration to callback. Invalid configurations are reported to
// onError and otherwise ignored.
func Watch(config *Config, callback func(*Config), onError func(error)) error {
	if config.v == nil || config.v.ConfigFileUsed() == "" {
		return fmt.Errorf("no configuration file to watch")
	}

	config.v.OnConfigChange(func(e fsnotify.Event) {
		next := &Config{}
		if err := config.v.Unmarshal(next); err != nil {
			onError(fmt.Errorf("failed to unmarshal config %s: %w", e.Name, err))
			return
		}
		if err := validateConfig(next); err != nil {
			onError(fmt.Errorf("invalid configuration %s: %w", e.Name, err))
			return
		}
		next.v = config.v
		callback(next)
	})
	config.v.WatchConfig()

	return nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Split.TestFraction <= 0 || config.Split.TestFraction >= 1 {
		return ErrInvalidTestFraction
	}

	if config.Reference.Source != "file" && config.Reference.Source != "postgres" {
		return ErrInvalidSource
	}

	if config.Reference.SourceSplit != "test" && config.Reference.SourceSplit != "all" {
		return ErrInvalidSourceSplit
	}

	if config.Search.K <= 0 {
		return ErrInvalidK
	}

	if config.Classifier.Kind != "tree" && config.Classifier.Kind != "knn" {
		return ErrInvalidClassifier
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return ErrInvalidPort
	}

	if config.Server.Events.Enabled && config.Server.Events.BufferSize <= 0 {
		return ErrInvalidEventBuffer
	}

	switch config.Output.Format {
	case "table", "text", "json":
	default:
		return ErrInvalidOutputFormat
	}

	switch config.Output.Order {
	case "desc", "asc", "none":
	default:
		return ErrInvalidOutputOrder
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return ErrInvalidLogFormat
	}

	return nil
}

// setViperDefaults registers every leaf of the defaults struct under its
// dotted mapstructure key, so environment overrides work without a config file.
func setViperDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		fv := val.Field(i)
		if fv.Kind() == reflect.Struct {
			setViperDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}
