package config

import (
	"math"
	"os"
	"strconv"
	"time"

	"gonbs/internal/errors"
	"gonbs/internal/inference"
	"gonbs/internal/tfce"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	TFCE      TFCEConfig
	Inference InferenceConfig
	Log       LogConfig
	Profiling ProfilingConfig
}

// DatabaseConfig holds database connection settings. An empty URL keeps run
// history in memory.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Environment     string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// TFCEConfig holds the default enhancement parameters used when a request
// does not override them.
type TFCEConfig struct {
	DH               float64
	H                float64
	E                float64
	Method           string
	ClampEnabled     bool
	ClampCeiling     float64
	ClampReplacement float64
}

// InferenceConfig holds permutation testing defaults
type InferenceConfig struct {
	Alpha   float64
	Workers int
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database:  *loadDatabaseConfig(),
		Server:    *loadServerConfig(),
		TFCE:      *loadTFCEConfig(),
		Inference: *loadInferenceConfig(),
		Log:       LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info")},
		Profiling: *loadProfilingConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:          getEnvOrDefault("DATABASE_URL", ""),
		MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns: getEnvIntOrDefault("DB_MAX_IDLE_CONNS", 5),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Environment:     getEnvOrDefault("APP_ENV", "development"),
		Port:            getEnvOrDefault("PORT", "8080"),
		ReadTimeout:     getEnvDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:    getEnvDurationOrDefault("SERVER_WRITE_TIMEOUT", 5*time.Minute),
		ShutdownTimeout: getEnvDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		MaxBodyBytes:    int64(getEnvIntOrDefault("SERVER_MAX_BODY_BYTES", 256<<20)),
	}
}

func loadTFCEConfig() *TFCEConfig {
	clamp := tfce.DefaultClamp()
	defaults := tfce.DefaultParams()
	return &TFCEConfig{
		DH:               getEnvFloatOrDefault("NBS_TFCE_DH", defaults.DH),
		H:                getEnvFloatOrDefault("NBS_TFCE_H", defaults.H),
		E:                getEnvFloatOrDefault("NBS_TFCE_E", defaults.E),
		Method:           getEnvOrDefault("NBS_TFCE_METHOD", string(tfce.MethodDense)),
		ClampEnabled:     getEnvBoolOrDefault("NBS_CLAMP_ENABLED", clamp.Enabled),
		ClampCeiling:     getEnvFloatOrDefault("NBS_CLAMP_CEILING", clamp.Ceiling),
		ClampReplacement: getEnvFloatOrDefault("NBS_CLAMP_REPLACEMENT", clamp.Replacement),
	}
}

func loadInferenceConfig() *InferenceConfig {
	return &InferenceConfig{
		Alpha:   getEnvFloatOrDefault("NBS_ALPHA", 0.05),
		Workers: getEnvIntOrDefault("NBS_WORKERS", 0),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	t := config.TFCE
	if !(t.DH > 0) || math.IsInf(t.DH, 0) {
		return errors.ConfigInvalid("NBS_TFCE_DH must be positive")
	}
	if math.IsNaN(t.H) || math.IsNaN(t.E) {
		return errors.ConfigInvalid("NBS_TFCE_H and NBS_TFCE_E must be numbers")
	}
	if _, err := tfce.NewEnhancer(tfce.Method(t.Method), tfce.DefaultParams()); err != nil {
		return errors.ConfigInvalid("NBS_TFCE_METHOD must be one of dense, exact, reference, none")
	}
	if a := config.Inference.Alpha; !(a > 0 && a <= 1) {
		return errors.ConfigInvalid("NBS_ALPHA must be in (0,1]")
	}
	return nil
}

// Params converts the configured defaults into sweep parameters.
func (t TFCEConfig) Params() tfce.Params {
	return tfce.Params{
		DH: t.DH,
		H:  t.H,
		E:  t.E,
		Clamp: tfce.ClampPolicy{
			Enabled:     t.ClampEnabled,
			Ceiling:     t.ClampCeiling,
			Replacement: t.ClampReplacement,
		},
	}
}

// Options converts the configured worker count into inference options.
func (i InferenceConfig) Options() inference.Options {
	return inference.Options{Workers: i.Workers}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
