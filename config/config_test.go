package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/veil"
	"github.com/zoobzio/veil/keys"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "veil.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VEIL_DIGEST_SALT", "pepper")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pepper", cfg.Digest.Salt)
	assert.Equal(t, "sm3", cfg.Digest.Algorithm)
	assert.Equal(t, "hex", cfg.Digest.Encoding)
	assert.Equal(t, "sm4", cfg.Crypto.Algorithm)
	assert.Equal(t, "ecb", cfg.Crypto.Mode)
	assert.Equal(t, "$", cfg.Crypto.Separator)
	assert.Equal(t, "version", cfg.Crypto.Identifier)
	assert.Equal(t, 1440, cfg.Key.TTLMinutes)
	assert.Equal(t, 24*time.Hour, cfg.TTL())
	assert.Equal(t, 16, cfg.Key.Size)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Store.ConnMaxLifetime)
	assert.Equal(t, "@every 5m", cfg.Admin.SweepSchedule)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
digest:
  salt: file-salt
  algorithm: sha256
  encoding: base64
crypto:
  algorithm: aes
  mode: gcm
  separator: "#"
key:
  ttlMinutes: 60
  materialBySlot:
    phone: 0123456789abcdef
    email: MDEyMzQ1Njc4OWFiY2RlZg==
store:
  driver: sqlite
  dsn: ":memory:"
classify:
  write: [persist]
  read: [fetch]
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-salt", cfg.Digest.Salt)
	assert.Equal(t, "sha256", cfg.Digest.Algorithm)
	assert.Equal(t, "aes", cfg.Crypto.Algorithm)
	assert.Equal(t, "gcm", cfg.Crypto.Mode)
	assert.Equal(t, "#", cfg.Crypto.Separator)
	assert.Equal(t, time.Hour, cfg.TTL())
	assert.Equal(t, []string{"email", "phone"}, cfg.Slots())
	assert.Equal(t, "sqlite", cfg.Store.Driver)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	c := cfg.Classifier()
	assert.Equal(t, veil.OpWrite, c.Classify("persistCustomer"))
	assert.Equal(t, veil.OpRead, c.Classify("fetchCustomer"))
	assert.Equal(t, veil.OpUnknown, c.Classify("insertCustomer"))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
digest:
  salt: file-salt
key:
  ttlMinutes: 60
`)
	t.Setenv("VEIL_DIGEST_SALT", "env-salt")
	t.Setenv("VEIL_KEY_TTL_MINUTES", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-salt", cfg.Digest.Salt)
	assert.Equal(t, 5*time.Minute, cfg.TTL())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Digest: Digest{Salt: "s", Algorithm: "sm3", Encoding: "hex"},
			Crypto: Crypto{Algorithm: "sm4", Mode: "ecb", Padding: "pkcs5", Separator: "$", Identifier: "version"},
			Key:    Key{TTLMinutes: 10, Size: 16},
			Store:  Store{Driver: DriverMemory},
			Log:    Log{Level: "INFO", Format: "json"},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown digest algorithm", func(c *Config) { c.Digest.Algorithm = "md5" }},
		{"unknown digest encoding", func(c *Config) { c.Digest.Encoding = "base32" }},
		{"unknown cipher", func(c *Config) { c.Crypto.Algorithm = "des" }},
		{"unknown mode", func(c *Config) { c.Crypto.Mode = "ofb" }},
		{"unknown padding", func(c *Config) { c.Crypto.Padding = "zero" }},
		{"multi-character separator", func(c *Config) { c.Crypto.Separator = "$$" }},
		{"base64 separator", func(c *Config) { c.Crypto.Separator = "+" }},
		{"unknown identifier", func(c *Config) { c.Crypto.Identifier = "uuid" }},
		{"zero ttl", func(c *Config) { c.Key.TTLMinutes = 0 }},
		{"negative ttl", func(c *Config) { c.Key.TTLMinutes = -5 }},
		{"zero key size", func(c *Config) { c.Key.Size = 0 }},
		{"numeric seed slot", func(c *Config) { c.Key.MaterialBySlot = map[string]string{"7": "x"} }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "redis" }},
		{"sql driver without dsn", func(c *Config) { c.Store.Driver = "postgres" }},
		{"unknown log level", func(c *Config) { c.Log.Level = "LOUD" }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
		{"otel without endpoint", func(c *Config) { c.Otel.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, veil.ErrInvalidConfig)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := &Config{
		Digest: Digest{Algorithm: "md5", Encoding: "hex"},
		Crypto: Crypto{Algorithm: "sm4", Mode: "ecb", Padding: "pkcs5", Separator: "$", Identifier: "version"},
		Key:    Key{TTLMinutes: 0, Size: 16},
		Store:  Store{Driver: DriverMemory},
		Log:    Log{Format: "json"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest.algorithm")
	assert.Contains(t, err.Error(), "key.ttlMinutes")
}

func TestBuilders_RoundTrip(t *testing.T) {
	path := writeConfig(t, `
digest:
  salt: pepper
crypto:
  algorithm: aes
  mode: cbc
key:
  materialBySlot:
    phone: MDEyMzQ1Njc4OWFiY2RlZg==
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	suite, err := cfg.Suite()
	require.NoError(t, err)
	assert.Equal(t, "aes/cbc/pkcs5", suite.String())

	ctx := context.Background()
	mgr := keys.NewManager(keys.NewMemoryStore(), cfg.ManagerOptions()...)
	require.NoError(t, mgr.Bootstrap(ctx))

	k, err := mgr.GetActiveKey(ctx, "phone")
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789abcdef"), k.Material)

	opts, err := cfg.CrypterOptions()
	require.NoError(t, err)
	crypter, err := veil.NewCrypter(mgr, opts...)
	require.NoError(t, err)

	sealed, err := crypter.Encrypt(ctx, "13812345678", "phone")
	require.NoError(t, err)
	opened, err := crypter.Decrypt(ctx, sealed)
	require.NoError(t, err)
	assert.Equal(t, "13812345678", opened)

	digester, err := cfg.Digester()
	require.NoError(t, err)
	assert.Equal(t, veil.DigestSM3, digester.Algorithm())
}

func TestPool(t *testing.T) {
	cfg := &Config{Store: Store{MaxOpenConns: 3, MaxIdleConns: 1, ConnMaxLifetime: time.Minute}}
	pool := cfg.Pool()
	assert.Equal(t, 3, pool.MaxOpenConns)
	assert.Equal(t, 1, pool.MaxIdleConns)
	assert.Equal(t, time.Minute, pool.ConnMaxLifetime)
}
