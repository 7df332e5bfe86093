package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// MemoryDatabase selects the in-process store instead of postgres
const MemoryDatabase = "memory"

// Config represents the application configuration
type Config struct {
	DatabaseURL string `yaml:"databaseURL" validate:"required"`
	PictureDir  string `yaml:"pictureDir" validate:"required"`
	LogDir      string `yaml:"logDir,omitempty"`
	PageSize    int    `yaml:"pageSize" validate:"min=1,max=200"`
	// Notices older than this are not shown to users
	NoticeTTLDays        int    `yaml:"noticeTTLDays" validate:"min=1"`
	NoticeQueueSize      int    `yaml:"noticeQueueSize" validate:"min=1"`
	SeriesMaxOccurrences int    `yaml:"seriesMaxOccurrences" validate:"min=1,max=366"`
	DefaultSeriesRule    string `yaml:"defaultSeriesRule,omitempty"`
	// Classes and users loaded into the in-memory store
	MemorySeed string `yaml:"memorySeed,omitempty"`
}

// Environment variables that override the file
const (
	EnvDatabaseURL = "ZVMS_DATABASE_URL"
	EnvPictureDir  = "ZVMS_PICTURE_DIR"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

func defaults() Config {
	return Config{
		LogDir:               "logs",
		PageSize:             20,
		NoticeTTLDays:        30,
		NoticeQueueSize:      256,
		SeriesMaxOccurrences: 52,
	}
}

// LoadWithEnv loads zvms_config_<env>.yaml, applies environment overrides and validates
// the result
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findConfigFile(fmt.Sprintf("zvms_config_%s.yaml", env))
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv loads a .env file from the working directory when present. Variables
// already set in the process win over the file.
func applyEnv(cfg *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	if v, ok := os.LookupEnv(EnvDatabaseURL); ok && v != "" {
		cfg.DatabaseURL = v
	}
	if v, ok := os.LookupEnv(EnvPictureDir); ok && v != "" {
		cfg.PictureDir = v
	}
	return nil
}

// Validate validates the configuration struct, the database URL and the series rule
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.DatabaseURL != MemoryDatabase {
		if _, err := pgxpool.ParseConfig(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("invalid databaseURL: %w", err)
		}
		if cfg.MemorySeed != "" {
			return fmt.Errorf("memorySeed is only used with databaseURL %q", MemoryDatabase)
		}
	}

	if cfg.DefaultSeriesRule != "" {
		if _, err := rrule.StrToRRule(cfg.DefaultSeriesRule); err != nil {
			return fmt.Errorf("invalid rrule in defaultSeriesRule: %w", err)
		}
	}

	return nil
}

// findConfigFile searches for name in current directory and home directory
func findConfigFile(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, name)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("config file %s not found in current directory or home directory", name)
}
