package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/bytes"
	"github.com/spf13/viper"
)

// Supported store drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds every runtime-tunable value of the service.
type Config struct {
	Port          int
	MaxUploadSize string // echo body limit syntax, e.g. "50M" or "50MB"

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	ModelPath         string // primary model variant
	FallbackModelPath string // tried exactly once when the primary fails
	InferenceURL      string // when set, the remote endpoint becomes the primary variant

	LogDirectory string
	LogLevel     string
}

// envBinding ties a viper key to the environment variable that overrides it.
type envBinding struct {
	Key    string
	EnvVar string
}

func envBindings() []envBinding {
	return []envBinding{
		{"port", "PORT"},
		{"upload.maxsize", "MAX_UPLOAD_SIZE"},
		{"db.driver", "DB_DRIVER"},
		{"db.host", "DB_HOST"},
		{"db.port", "DB_PORT"},
		{"db.user", "DB_USER"},
		{"db.password", "DB_PASSWORD"},
		{"db.name", "DB_NAME"},
		{"db.sqlitepath", "DB_SQLITE_PATH"},
		{"model.path", "MODEL_PATH"},
		{"model.fallbackpath", "FALLBACK_MODEL_PATH"},
		{"model.inferenceurl", "INFERENCE_URL"},
		{"log.dir", "LOG_DIR"},
		{"log.level", "LOG_LEVEL"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8000)
	v.SetDefault("upload.maxsize", "50M")

	v.SetDefault("db.driver", DriverMySQL)
	v.SetDefault("db.host", "mysql")
	v.SetDefault("db.port", "3306")
	v.SetDefault("db.user", "root")
	v.SetDefault("db.password", "root_password")
	v.SetDefault("db.name", "image_detection")
	v.SetDefault("db.sqlitepath", "data/detections.db")

	v.SetDefault("model.path", "yolov8n.onnx")
	v.SetDefault("model.fallbackpath", "yolov8s.onnx")
	v.SetDefault("model.inferenceurl", "")

	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.level", "info")
}

// Load reads an optional .env file, then resolves every key from (in order of
// precedence) flags bound to v, environment variables, an optional config
// file and the built-in defaults. A nil v gets a fresh viper instance.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	setDefaults(v)
	for _, b := range envBindings() {
		if err := v.BindEnv(b.Key, b.EnvVar); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", b.EnvVar, err)
		}
	}

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Port:              v.GetInt("port"),
		MaxUploadSize:     v.GetString("upload.maxsize"),
		DBDriver:          strings.ToLower(v.GetString("db.driver")),
		DBHost:            v.GetString("db.host"),
		DBPort:            v.GetString("db.port"),
		DBUser:            v.GetString("db.user"),
		DBPassword:        v.GetString("db.password"),
		DBName:            v.GetString("db.name"),
		SQLitePath:        v.GetString("db.sqlitepath"),
		ModelPath:         v.GetString("model.path"),
		FallbackModelPath: v.GetString("model.fallbackpath"),
		InferenceURL:      v.GetString("model.inferenceurl"),
		LogDirectory:      v.GetString("log.dir"),
		LogLevel:          v.GetString("log.level"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would only fail later at startup.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}

	switch c.DBDriver {
	case DriverMySQL, DriverPostgres:
		if c.DBHost == "" || c.DBName == "" {
			errs = append(errs, fmt.Errorf("%s driver needs DB_HOST and DB_NAME", c.DBDriver))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite driver needs DB_SQLITE_PATH"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q (want mysql, postgres or sqlite)", c.DBDriver))
	}

	// Parsed the same way echo's BodyLimit middleware parses it.
	if n, err := bytes.Parse(c.MaxUploadSize); err != nil || n <= 0 {
		errs = append(errs, fmt.Errorf("invalid MAX_UPLOAD_SIZE %q", c.MaxUploadSize))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel))
	}

	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
