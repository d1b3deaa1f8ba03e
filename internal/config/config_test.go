package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // keep a developer's .env out of the test

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, DriverMySQL, cfg.DBDriver)
	assert.Equal(t, "mysql", cfg.DBHost)
	assert.Equal(t, "3306", cfg.DBPort)
	assert.Equal(t, "root", cfg.DBUser)
	assert.Equal(t, "root_password", cfg.DBPassword)
	assert.Equal(t, "image_detection", cfg.DBName)
	assert.Equal(t, "yolov8n.onnx", cfg.ModelPath)
	assert.Equal(t, "yolov8s.onnx", cfg.FallbackModelPath)
	assert.Empty(t, cfg.InferenceURL)
	assert.Equal(t, "50M", cfg.MaxUploadSize)
	assert.Equal(t, ":8000", cfg.Addr())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_USER", "detector")
	t.Setenv("DB_PASSWORD", "s3cret")
	t.Setenv("DB_NAME", "detections")
	t.Setenv("FALLBACK_MODEL_PATH", "/models/yolov8m.onnx")
	t.Setenv("INFERENCE_URL", "http://inference:5000/predict")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, "3307", cfg.DBPort)
	assert.Equal(t, "detector", cfg.DBUser)
	assert.Equal(t, "s3cret", cfg.DBPassword)
	assert.Equal(t, "detections", cfg.DBName)
	assert.Equal(t, "/models/yolov8m.onnx", cfg.FallbackModelPath)
	assert.Equal(t, "http://inference:5000/predict", cfg.InferenceURL)
}

func TestLoad_FlagValueWinsOverEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")

	v := viper.New()
	v.Set("port", 7000)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:          8000,
			MaxUploadSize: "50M",
			DBDriver:      DriverMySQL,
			DBHost:        "mysql",
			DBName:        "image_detection",
			LogLevel:      "info",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port too low", func(c *Config) { c.Port = 0 }, "port must be between"},
		{"port too high", func(c *Config) { c.Port = 70000 }, "port must be between"},
		{"unknown driver", func(c *Config) { c.DBDriver = "oracle" }, "unsupported DB_DRIVER"},
		{"mysql without host", func(c *Config) { c.DBHost = "" }, "needs DB_HOST"},
		{"sqlite without path", func(c *Config) { c.DBDriver = DriverSQLite }, "needs DB_SQLITE_PATH"},
		{"sqlite with path", func(c *Config) { c.DBDriver = DriverSQLite; c.SQLitePath = "x.db" }, ""},
		{"bad body limit", func(c *Config) { c.MaxUploadSize = "lots" }, "invalid MAX_UPLOAD_SIZE"},
		{"zero body limit", func(c *Config) { c.MaxUploadSize = "0" }, "invalid MAX_UPLOAD_SIZE"},
		{"body limit with unit suffix", func(c *Config) { c.MaxUploadSize = "50MB" }, ""},
		{"lower-case body limit", func(c *Config) { c.MaxUploadSize = "50m" }, ""},
		{"plain byte body limit", func(c *Config) { c.MaxUploadSize = "1048576" }, ""},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, "invalid LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
