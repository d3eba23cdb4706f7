package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/target/gatehouse/config"
	apperrors "github.com/target/gatehouse/internal/errors"
)

// InitLogger initializes the structured logger at the given level.
func InitLogger(level slog.Level) *slog.Logger {
	return initLogger(os.Stdout, level)
}

func initLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateConfig rejects unusable configuration and logs warnings.
func ValidateConfig(cfg *config.AppConfig, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	warnings, err := cfg.Validate()
	for _, w := range warnings {
		if logger != nil {
			logger.Warn("configuration warning", "detail", w)
		}
	}
	if err != nil {
		for _, e := range leafErrors(err) {
			if logger != nil && apperrors.IsValidation(e) {
				logger.Error("invalid configuration", "field", apperrors.GetField(e), "detail", apperrors.GetMessage(e))
			}
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// leafErrors flattens errors.Join trees.
func leafErrors(err error) []error {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}
	var out []error
	for _, e := range joined.Unwrap() {
		out = append(out, leafErrors(e)...)
	}
	return out
}
