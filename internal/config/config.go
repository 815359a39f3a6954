// Package config loads markbook configuration from defaults, an optional
// markbook.yaml, a .env file and MARKBOOK_* environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MARKBOOK_STORE_DRIVER.
const EnvPrefix = "MARKBOOK"

// FileName is the config file name searched for, without extension.
const FileName = "markbook"

// Config holds all markbook configuration.
type Config struct {
	DataDir   string          `mapstructure:"data_dir" yaml:"data_dir" validate:"required"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Folder    FolderConfig    `mapstructure:"folder" yaml:"folder"`
	Backup    BackupConfig    `mapstructure:"backup" yaml:"backup"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Dashboard DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
}

// StoreConfig selects the key-value backend.
type StoreConfig struct {
	Driver string      `mapstructure:"driver" yaml:"driver" validate:"oneof=sqlite memory redis"`
	Path   string      `mapstructure:"path" yaml:"path"`
	Redis  RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig holds Redis connection settings for the redis driver.
type RedisConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	Password  string `mapstructure:"password" yaml:"password,omitempty"`
	DB        int    `mapstructure:"db" yaml:"db" validate:"gte=0"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// FolderConfig points at the folder mirror; an empty path disables it.
type FolderConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// BackupConfig holds snapshot settings.
type BackupConfig struct {
	AutoInterval time.Duration `mapstructure:"auto_interval" yaml:"auto_interval" validate:"gt=0"`
	Max          int           `mapstructure:"max" yaml:"max" validate:"gte=1"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=console json"`

	// File, when set, receives logs through a rotating writer instead of stderr.
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" validate:"gte=1"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
}

// DashboardConfig holds dashboard server settings.
type DashboardConfig struct {
	Port int `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
}

// StorePath returns the SQLite database path: store.path, or markbook.db in
// the data directory.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(c.DataDir, "markbook.db")
}

// Load reads configuration. configFile, when non-empty, is read instead of
// searching $MARKBOOK_HOME, ~/.markbook and the working directory.
func Load(configFile string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		for _, dir := range searchPaths() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Folder.Path = expandHome(cfg.Folder.Path)
	cfg.Log.File = expandHome(cfg.Log.File)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in defaults without reading files or the
// environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.DataDir = expandHome(cfg.DataDir)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.namespace", "markbook:")

	v.SetDefault("folder.path", "")

	v.SetDefault("backup.auto_interval", "5m")
	v.SetDefault("backup.max", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)

	v.SetDefault("dashboard.port", 8080)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report config keys rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and cross-field rules.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", configKey(fe.Namespace()), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if cfg.Store.Driver == "redis" && cfg.Store.Redis.Addr == "" {
		return errors.New("store.redis.addr is required for the redis driver")
	}
	return nil
}

// configKey turns a validator namespace such as "Config.store.driver" into
// the config key "store.driver".
func configKey(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func searchPaths() []string {
	var dirs []string
	if home := os.Getenv(EnvPrefix + "_HOME"); home != "" {
		dirs = append(dirs, home)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".markbook"))
	}
	return append(dirs, ".")
}

func defaultDataDir() string {
	if home := os.Getenv(EnvPrefix + "_HOME"); home != "" {
		return home
	}
	return "~/.markbook"
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
