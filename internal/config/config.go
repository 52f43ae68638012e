package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultFile is read when Load is given no path. A missing default file is
// not an error.
const DefaultFile = "oapi-pipeline.yaml"

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore: OAPI_SERVER__PORT=9000.
const EnvPrefix = "OAPI_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	API       APIConfig       `koanf:"api"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type APIConfig struct {
	// Doc is the path of the Swagger 2.0 document.
	Doc string `koanf:"doc"`
	// Routes is the directory holding the route modules.
	Routes      string `koanf:"routes"`
	DocsPath    string `koanf:"docs_path"`
	ExposeDocs  bool   `koanf:"expose_docs"`
	ValidateDoc bool   `koanf:"validate_doc"`
	// StrictValidation promotes document warnings to errors.
	StrictValidation bool `koanf:"strict_validation"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	ServiceName string  `koanf:"service_name"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

var defaults = map[string]any{
	"server.port":            8080,
	"server.request_timeout": "30s",
	"api.docs_path":          "/api-docs",
	"api.expose_docs":        true,
	"api.validate_doc":       true,
	"metrics.enabled":        true,
	"telemetry.service_name": "oapi-pipeline",
	"telemetry.sample_ratio": 1.0,
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (or DefaultFile when path is empty), then applies
// environment overrides and defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// Only an explicitly requested file has to exist
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	// Environment variables override the file
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.API.Doc = substituteEnvVars(cfg.API.Doc)
	cfg.API.Routes = substituteEnvVars(cfg.API.Routes)

	return &cfg, nil
}

// Validate checks the settings needed to serve an API.
func (c *Config) Validate() error {
	var errs []error
	if c.API.Doc == "" {
		errs = append(errs, errors.New("api.doc is required"))
	}
	if c.API.Routes == "" {
		errs = append(errs, errors.New("api.routes is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Server.RequestTimeout < 0 {
		errs = append(errs, errors.New("server.request_timeout must not be negative"))
	}
	return errors.Join(errs...)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
