package adminhub

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

func TestConfigValidateTable(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "baseline valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "access ttl zero",
			mutate: func(c *Config) {
				c.JWT.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "refresh ttl not above access ttl",
			mutate: func(c *Config) {
				c.JWT.RefreshTTL = c.JWT.AccessTTL
			},
			wantValid: false,
		},
		{
			name: "unknown signing method",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "hs256 without key",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = nil
			},
			wantValid: false,
		},
		{
			name: "ed25519 without public key",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
				c.JWT.PublicKey = nil
			},
			wantValid: false,
		},
		{
			name: "negative retention",
			mutate: func(c *Config) {
				c.Ledger.RevokedRetention = -time.Hour
			},
			wantValid: false,
		},
		{
			name: "jitter enabled without range",
			mutate: func(c *Config) {
				c.Ledger.JitterEnabled = true
				c.Ledger.JitterRange = 0
			},
			wantValid: false,
		},
		{
			name: "weak password memory",
			mutate: func(c *Config) {
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "registration without default role",
			mutate: func(c *Config) {
				c.Account.AllowRegistration = true
				c.Account.DefaultRole = ""
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "login throttle without budget",
			mutate: func(c *Config) {
				c.Security.EnableLoginThrottle = true
				c.Security.MaxLoginAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "samesite none without secure cookies",
			mutate: func(c *Config) {
				c.Security.SameSitePolicy = http.SameSiteNoneMode
				c.Security.RequireSecureCookies = false
			},
			wantValid: false,
		},
		{
			name: "samesite strict valid",
			mutate: func(c *Config) {
				c.Security.SameSitePolicy = http.SameSiteStrictMode
			},
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation failure")
			}
		})
	}
}

func TestConfigValidateProductionRejectsWeakHS256Key(t *testing.T) {
	cfg := validTestConfig()
	cfg.Security.ProductionMode = true
	cfg.JWT.PrivateKey = []byte("weak-key")

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "256 bits") {
		t.Fatalf("expected weak HS256 key rejection, got %v", err)
	}
}

func TestConfigValidateProductionRejectsWeakArgon2(t *testing.T) {
	cfg := validTestConfig()
	cfg.Security.ProductionMode = true
	cfg.Password.Memory = 32 * 1024

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "Memory") {
		t.Fatalf("expected weak argon2 rejection, got %v", err)
	}
}

func TestConfigValidateProductionRejectsLongTTLs(t *testing.T) {
	cfg := validTestConfig()
	cfg.Security.ProductionMode = true
	cfg.JWT.AccessTTL = time.Hour
	cfg.JWT.RefreshTTL = 90 * 24 * time.Hour

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected long access TTL rejection in production mode")
	}

	cfg.JWT.AccessTTL = 15 * time.Minute
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected long refresh TTL rejection in production mode")
	}
}

func TestConfigValidateProductionRequiresSecureCookies(t *testing.T) {
	cfg := validTestConfig()
	cfg.Security.ProductionMode = true
	cfg.Security.RequireSecureCookies = false

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected secure cookie requirement in production mode")
	}
}

func TestCloneConfigIsolatesKeyMaterial(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)

	clone.JWT.PrivateKey[0] = 'x'
	if cfg.JWT.PrivateKey[0] == 'x' {
		t.Fatal("expected cloned key material to be independent")
	}
}

func TestDefaultConfigBaseline(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.JWT.SigningMethod != "ed25519" {
		t.Fatalf("expected ed25519 default, got %q", cfg.JWT.SigningMethod)
	}
	if cfg.Ledger.RedisPrefix != "ah" {
		t.Fatalf("expected ah prefix, got %q", cfg.Ledger.RedisPrefix)
	}
	if cfg.Account.DefaultRole != RoleAdmin {
		t.Fatalf("expected admin default role, got %q", cfg.Account.DefaultRole)
	}
	if cfg.Audit.Enabled || cfg.Metrics.Enabled {
		t.Fatal("expected audit and metrics disabled by default")
	}
}
