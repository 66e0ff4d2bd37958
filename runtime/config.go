package runtime

import (
	"fmt"
	"net"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Package-level validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	registerCustomValidators()
}

// Config is the loader configuration, normally read from gantry.yaml.
type Config struct {
	// PluginsDir is the root of the plugin tree.
	PluginsDir string `yaml:"plugins_dir" default:"plugins" validate:"required"`

	// Addr is the listen address for serve mode.
	Addr string `yaml:"addr" default:":8080" validate:"hostname_port"`

	// BasePrefix, when set, is prepended to every registration. There is no
	// implicit /api prefix; deployments that want one set it here.
	BasePrefix string `yaml:"base_prefix" validate:"omitempty,startswith=/"`

	// Watch enables the filesystem watcher and full-rebuild reloads.
	Watch bool `yaml:"watch"`

	// DebounceMS coalesces change bursts before a reload triggers.
	DebounceMS int `yaml:"debounce_ms" default:"100" validate:"gte=10,lte=5000"`

	// Debug exposes the plugin manifest route.
	Debug bool `yaml:"debug"`

	// Plugins holds per-plugin config sections, keyed by task name, merged
	// into each module's exported Config struct.
	Plugins map[string]map[string]any `yaml:"plugins"`
}

// Debounce returns the configured debounce window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// DefaultConfig returns a config with defaults applied and no file read.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		// Defaults on our own struct cannot fail unless the tags are broken.
		panic(fmt.Sprintf("applying config defaults: %v", err))
	}
	return cfg
}

// LoadConfig reads a YAML config file, fills defaults, and validates.
// A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config %s: %w", path, err)
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying config defaults: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// InitializeConfig prepares a module-exported config struct: defaults from
// struct tags, then raw values from the matching plugins section, then
// validation of the merged result.
func InitializeConfig(config any, rawValues map[string]any) error {
	if err := defaults.Set(config); err != nil {
		return fmt.Errorf("failed to apply defaults: %w", err)
	}

	if len(rawValues) > 0 {
		if err := mapToStruct(rawValues, config); err != nil {
			return fmt.Errorf("failed to apply config values: %w", err)
		}
	}

	configValue := reflect.ValueOf(config)
	if configValue.Kind() == reflect.Ptr {
		configValue = configValue.Elem()
	}

	if err := validateConfig(configValue.Interface()); err != nil {
		return err
	}

	return nil
}

// mapToStruct merges a raw value map into a struct using mapstructure.
// Config structs use yaml tags for field mapping; duration strings decode
// into time.Duration.
func mapToStruct(m map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(m); err != nil {
		return fmt.Errorf("failed to decode map to struct: %w", err)
	}

	return nil
}

func validateConfig(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validate.Struct(config); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMessages []string
			for _, fieldErr := range validationErrors {
				errMessages = append(errMessages, fmt.Sprintf(
					"field '%s' failed validation (rule: %s)",
					fieldErr.Field(),
					fieldErr.Tag(),
				))
			}
			return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errMessages, "\n  - "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

func registerCustomValidators() {
	// hostname_port validates "host:port" format with numeric port. The
	// host may be empty (":8080" listens on all interfaces).
	validate.RegisterValidation("hostname_port", func(fl validator.FieldLevel) bool {
		addr := fl.Field().String()
		_, port, err := net.SplitHostPort(addr)
		if err != nil || port == "" {
			return false
		}
		_, err = net.LookupPort("tcp", port)
		return err == nil
	})
}
