package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, ShutdownTimeout: time.Second, RequestTimeout: time.Second},
		Database: DatabaseConfig{Driver: "postgres", URL: "postgres://localhost/test", MaxConns: 10, MinConns: 2},
		Registry: RegistryConfig{CacheTTL: time.Minute, CacheCleanupInterval: time.Minute},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "postgres")
	}
	if cfg.Registry.CaseInsensitiveNames {
		t.Error("Registry.CaseInsensitiveNames should default to false")
	}
	if cfg.Registry.CacheTTL != time.Minute {
		t.Errorf("Registry.CacheTTL = %v, want %v", cfg.Registry.CacheTTL, time.Minute)
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("Tracing.SampleRate = %v, want 1.0", cfg.Tracing.SampleRate)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "tokens.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TOKEN_NAMES_CASE_INSENSITIVE", "true")
	t.Setenv("TRACING_SAMPLE_RATE", "0.25")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "sqlite")
	}
	if !cfg.Registry.CaseInsensitiveNames {
		t.Error("Registry.CaseInsensitiveNames = false, want true")
	}
	if cfg.Tracing.SampleRate != 0.25 {
		t.Errorf("Tracing.SampleRate = %v, want 0.25", cfg.Tracing.SampleRate)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "postgres://localhost/alttest")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.URL != "postgres://localhost/alttest" {
		t.Errorf("Database.URL = %q, want %q", cfg.Database.URL, "postgres://localhost/alttest")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for missing DATABASE_URL")
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("TOKEN_CACHE_TTL", "soon")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "TOKEN_CACHE_TTL") {
		t.Fatalf("Load() error = %v, want mention of TOKEN_CACHE_TTL", err)
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("API_KEYS", "alpha, beta ,,gamma")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expected := []string{"alpha", "beta", "gamma"}
	if len(cfg.Security.APIKeys) != len(expected) {
		t.Fatalf("APIKeys length = %d, want %d", len(cfg.Security.APIKeys), len(expected))
	}
	for i, v := range expected {
		if cfg.Security.APIKeys[i] != v {
			t.Errorf("APIKeys[%d] = %q, want %q", i, cfg.Security.APIKeys[i], v)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"invalid port", func(c *Config) { c.Server.Port = 99999 }, "SERVER_PORT"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "DB_DRIVER"},
		{"max below min conns", func(c *Config) { c.Database.MaxConns, c.Database.MinConns = 2, 5 }, "DB_MAX_CONNS"},
		{"sqlite ignores pool", func(c *Config) { c.Database.Driver, c.Database.MaxConns = "sqlite", 0 }, ""},
		{"negative cache ttl", func(c *Config) { c.Registry.CacheTTL = -time.Second }, "TOKEN_CACHE_TTL"},
		{"cache without cleanup", func(c *Config) { c.Registry.CacheCleanupInterval = 0 }, "TOKEN_CACHE_CLEANUP_INTERVAL"},
		{"api key required but empty", func(c *Config) { c.Security.RequireAPIKey = true }, "API_KEYS"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"invalid exporter", func(c *Config) { c.Tracing = TracingConfig{Enabled: true, Exporter: "zipkin"} }, "TRACING_EXPORTER"},
		{"invalid sample rate", func(c *Config) { c.Tracing = TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 2} }, "TRACING_SAMPLE_RATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should mention %s: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"SERVER_PORT", "LOG_FORMAT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"", 3000, ":3000"},
		{"localhost", 443, "localhost:443"},
	}

	for _, tt := range tests {
		cfg := ServerConfig{Host: tt.host, Port: tt.port}
		if got := cfg.Addr(); got != tt.want {
			t.Errorf("Addr() = %q, want %q", got, tt.want)
		}
	}
}

func TestString_MasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Database.URL = "postgres://user:secret@db/tokens"
	cfg.Security.APIKeys = []string{"topsecret"}

	s := cfg.String()
	for _, leaked := range []string{"secret@db", "topsecret"} {
		if strings.Contains(s, leaked) {
			t.Errorf("String() leaks %q: %s", leaked, s)
		}
	}
}

func mapLookup(env map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestPopulate_CustomLookup(t *testing.T) {
	var cfg Config
	if err := Populate(&cfg, mapLookup(map[string]string{"DB_URL": "tokens.db", "DB_DRIVER": "sqlite"})); err != nil {
		t.Fatalf("Populate() error = %v", err)
	}
	if cfg.Database.URL != "tokens.db" || cfg.Database.Driver != "sqlite" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestPopulate_ReportsEveryBadVariable(t *testing.T) {
	var cfg Config
	err := Populate(&cfg, mapLookup(map[string]string{
		"SERVER_PORT":                  "eighty",
		"TOKEN_NAMES_CASE_INSENSITIVE": "maybe",
	}))
	if err == nil {
		t.Fatal("Populate() expected error")
	}
	for _, want := range []string{"SERVER_PORT", "TOKEN_NAMES_CASE_INSENSITIVE", "DATABASE_URL is not set"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestPopulate_AnyStruct(t *testing.T) {
	var local struct {
		Driver          string        `env:"DB_DRIVER" default:"sqlite"`
		CaseInsensitive bool          `env:"TOKEN_NAMES_CASE_INSENSITIVE"`
		TTL             time.Duration `env:"TOKEN_CACHE_TTL" default:"30s"`
		Tags            []string      `env:"TAGS"`
		ignored         string
	}

	err := Populate(&local, mapLookup(map[string]string{"TOKEN_NAMES_CASE_INSENSITIVE": "1", "TAGS": "a,,b "}))
	if err != nil {
		t.Fatalf("Populate() error = %v", err)
	}
	if local.Driver != "sqlite" || !local.CaseInsensitive || local.TTL != 30*time.Second {
		t.Errorf("got %+v", local)
	}
	if strings.Join(local.Tags, "|") != "a|b" {
		t.Errorf("Tags = %q", local.Tags)
	}
	_ = local.ignored

	if err := Populate(local, os.LookupEnv); err == nil {
		t.Error("Populate() should reject a non-pointer")
	}
}
