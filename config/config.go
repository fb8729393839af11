// Package config loads veil settings from a YAML file and VEIL_* environment
// variables, and turns them into component options.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/zoobzio/veil"
	"github.com/zoobzio/veil/keys"
	"github.com/zoobzio/veil/keys/gormstore"
)

// Store drivers accepted in store.driver.
const (
	DriverMemory = "memory"
)

// Config is the full settings tree.
type Config struct {
	Digest   Digest   `yaml:"digest"`
	Crypto   Crypto   `yaml:"crypto"`
	Key      Key      `yaml:"key"`
	Store    Store    `yaml:"store"`
	KMS      KMS      `yaml:"kms"`
	Classify Classify `yaml:"classify"`
	Log      Log      `yaml:"log"`
	Otel     Otel     `yaml:"otel"`
	Admin    Admin    `yaml:"admin"`
}

// Digest configures blind-index digests.
type Digest struct {
	Salt      string `yaml:"salt" env:"VEIL_DIGEST_SALT"`
	Algorithm string `yaml:"algorithm" env:"VEIL_DIGEST_ALGORITHM" env-default:"sm3"`
	Encoding  string `yaml:"encoding" env:"VEIL_DIGEST_ENCODING" env-default:"hex"`
}

// Crypto configures the cipher suite and envelope layout.
type Crypto struct {
	Algorithm  string `yaml:"algorithm" env:"VEIL_CRYPTO_ALGORITHM" env-default:"sm4"`
	Mode       string `yaml:"mode" env:"VEIL_CRYPTO_MODE" env-default:"ecb"`
	Padding    string `yaml:"padding" env:"VEIL_CRYPTO_PADDING" env-default:"pkcs5"`
	Separator  string `yaml:"separator" env:"VEIL_CRYPTO_SEPARATOR" env-default:"$"`
	Identifier string `yaml:"identifier" env:"VEIL_CRYPTO_IDENTIFIER" env-default:"version"`
}

// Key configures key generation and expiry.
type Key struct {
	TTLMinutes     int               `yaml:"ttlMinutes" env:"VEIL_KEY_TTL_MINUTES" env-default:"1440"`
	Size           int               `yaml:"size" env:"VEIL_KEY_SIZE" env-default:"16"`
	MaterialBySlot map[string]string `yaml:"materialBySlot"`
}

// Store selects the key store.
type Store struct {
	Driver          string        `yaml:"driver" env:"VEIL_STORE_DRIVER" env-default:"memory"`
	DSN             string        `yaml:"dsn" env:"VEIL_STORE_DSN"`
	MaxOpenConns    int           `yaml:"maxOpenConns" env:"VEIL_STORE_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `yaml:"maxIdleConns" env:"VEIL_STORE_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" env:"VEIL_STORE_CONN_MAX_LIFETIME" env-default:"30m"`
}

// KMS configures at-rest wrapping of key material. Empty KeyName disables it.
type KMS struct {
	KeyName         string `yaml:"keyName" env:"VEIL_KMS_KEY_NAME"`
	CredentialsFile string `yaml:"credentialsFile" env:"VEIL_KMS_CREDENTIALS_FILE"`
}

// Classify holds operation name prefixes. Empty lists use the defaults.
type Classify struct {
	Write []string `yaml:"write" env:"VEIL_CLASSIFY_WRITE" env-separator:","`
	Read  []string `yaml:"read" env:"VEIL_CLASSIFY_READ" env-separator:","`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level" env:"VEIL_LOG_LEVEL" env-default:"INFO"`
	Format string `yaml:"format" env:"VEIL_LOG_FORMAT" env-default:"json"`
}

// Otel configures trace export.
type Otel struct {
	Enabled      bool    `yaml:"enabled" env:"VEIL_OTEL_ENABLED"`
	Endpoint     string  `yaml:"endpoint" env:"VEIL_OTEL_ENDPOINT" env-default:"localhost:4317"`
	Insecure     bool    `yaml:"insecure" env:"VEIL_OTEL_INSECURE"`
	ServiceName  string  `yaml:"serviceName" env:"VEIL_OTEL_SERVICE_NAME" env-default:"veil"`
	SamplingRate float64 `yaml:"samplingRate" env:"VEIL_OTEL_SAMPLING_RATE" env-default:"1"`
	ProjectID    string  `yaml:"projectId" env:"VEIL_OTEL_PROJECT_ID"`
}

// Admin configures the key admin server run by veilctl serve.
type Admin struct {
	Addr          string `yaml:"addr" env:"VEIL_ADMIN_ADDR" env-default:":8080"`
	SweepSchedule string `yaml:"sweepSchedule" env:"VEIL_ADMIN_SWEEP_SCHEDULE" env-default:"@every 5m"`
}

// Load reads path, when given, then applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Usage returns a description of every environment variable.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if !veil.IsValidDigestAlgo(veil.DigestAlgo(c.Digest.Algorithm)) {
		errs = append(errs, invalid("digest.algorithm", c.Digest.Algorithm))
	}
	if enc := veil.DigestEncoding(c.Digest.Encoding); enc != veil.EncodingHex && enc != veil.EncodingBase64 {
		errs = append(errs, invalid("digest.encoding", c.Digest.Encoding))
	}

	if !veil.IsValidCipherAlgo(veil.CipherAlgo(c.Crypto.Algorithm)) {
		errs = append(errs, invalid("crypto.algorithm", c.Crypto.Algorithm))
	}
	if !veil.IsValidCipherMode(veil.CipherMode(c.Crypto.Mode)) {
		errs = append(errs, invalid("crypto.mode", c.Crypto.Mode))
	}
	if !veil.IsValidPadding(veil.Padding(c.Crypto.Padding)) {
		errs = append(errs, invalid("crypto.padding", c.Crypto.Padding))
	}
	if err := veil.ValidateSeparator(c.Crypto.Separator); err != nil {
		errs = append(errs, fmt.Errorf("crypto.separator: %w", err))
	}
	if !veil.IsValidIdentifierMode(veil.IdentifierMode(c.Crypto.Identifier)) {
		errs = append(errs, invalid("crypto.identifier", c.Crypto.Identifier))
	}

	if c.Key.TTLMinutes <= 0 {
		errs = append(errs, invalid("key.ttlMinutes", c.Key.TTLMinutes))
	}
	if c.Key.Size <= 0 {
		errs = append(errs, invalid("key.size", c.Key.Size))
	}
	for slot := range c.Key.MaterialBySlot {
		if err := keys.ValidateSlot(slot); err != nil {
			errs = append(errs, fmt.Errorf("%w: key.materialBySlot: %w", veil.ErrInvalidConfig, err))
		}
	}

	switch c.Store.Driver {
	case DriverMemory:
	case gormstore.DriverMySQL, gormstore.DriverPostgres, gormstore.DriverSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("%w: store.dsn is required for driver %q", veil.ErrInvalidConfig, c.Store.Driver))
		}
	default:
		errs = append(errs, invalid("store.driver", c.Store.Driver))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "text" {
		errs = append(errs, invalid("log.format", c.Log.Format))
	}
	if c.Otel.Enabled && c.Otel.Endpoint == "" {
		errs = append(errs, fmt.Errorf("%w: otel.endpoint is required when tracing is enabled", veil.ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

func invalid(setting string, value any) error {
	return fmt.Errorf("%w: %s = %v", veil.ErrInvalidConfig, setting, value)
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToUpper(c.Log.Level) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, invalid("log.level", c.Log.Level)
	}
}

// TTL returns the key validity window.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.Key.TTLMinutes) * time.Minute
}

// Suite builds the cipher suite.
func (c *Config) Suite() (*veil.Suite, error) {
	return veil.NewSuite(
		veil.CipherAlgo(c.Crypto.Algorithm),
		veil.CipherMode(c.Crypto.Mode),
		veil.Padding(c.Crypto.Padding),
	)
}

// CrypterOptions returns the crypter settings.
func (c *Config) CrypterOptions() ([]veil.CrypterOption, error) {
	suite, err := c.Suite()
	if err != nil {
		return nil, err
	}
	return []veil.CrypterOption{
		veil.WithSuite(suite),
		veil.WithSeparator(c.Crypto.Separator),
		veil.WithIdentifierMode(veil.IdentifierMode(c.Crypto.Identifier)),
	}, nil
}

// Digester builds the digest engine.
func (c *Config) Digester() (*veil.Digester, error) {
	return veil.NewDigester(c.Digest.Salt,
		veil.WithDigestAlgorithm(veil.DigestAlgo(c.Digest.Algorithm)),
		veil.WithDigestEncoding(veil.DigestEncoding(c.Digest.Encoding)),
	)
}

// ManagerOptions returns the key manager settings. Seeds are applied in
// slot order.
func (c *Config) ManagerOptions() []keys.Option {
	opts := []keys.Option{
		keys.WithTTL(c.TTL()),
		keys.WithKeySize(c.Key.Size),
	}
	for _, slot := range c.Slots() {
		opts = append(opts, keys.WithSeed(slot, c.Key.MaterialBySlot[slot]))
	}
	return opts
}

// Slots lists the slots with configured initial material, sorted.
func (c *Config) Slots() []string {
	slots := make([]string, 0, len(c.Key.MaterialBySlot))
	for slot := range c.Key.MaterialBySlot {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}

// Classifier builds the operation classifier.
func (c *Config) Classifier() *veil.Classifier {
	write, read := c.Classify.Write, c.Classify.Read
	if len(write) == 0 {
		write = veil.DefaultWritePrefixes
	}
	if len(read) == 0 {
		read = veil.DefaultReadPrefixes
	}
	return veil.NewClassifier(write, read)
}

// Pool returns the store connection pool settings.
func (c *Config) Pool() gormstore.PoolConfig {
	return gormstore.PoolConfig{
		MaxOpenConns:    c.Store.MaxOpenConns,
		MaxIdleConns:    c.Store.MaxIdleConns,
		ConnMaxLifetime: c.Store.ConnMaxLifetime,
	}
}
