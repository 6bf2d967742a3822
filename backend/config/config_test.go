package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_NAME", "JWT_EXPIRE_HOURS", "ALLOWED_ORIGINS", "MAX_PHOTO_MB", "AMQP_URL"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "5000" {
		t.Errorf("Port = %q, want 5000", cfg.Port)
	}
	if cfg.DBName != "cleanstreet" {
		t.Errorf("DBName = %q, want cleanstreet", cfg.DBName)
	}
	if cfg.JWTExpiry != 7*24*time.Hour {
		t.Errorf("JWTExpiry = %v", cfg.JWTExpiry)
	}
	if cfg.MaxPhotoBytes != 10<<20 {
		t.Errorf("MaxPhotoBytes = %d", cfg.MaxPhotoBytes)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.AMQPURL != "" {
		t.Errorf("AMQPURL = %q, want empty", cfg.AMQPURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_EXPIRE_HOURS", "1")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("STATS_CACHE_TTL", "2m")
	t.Setenv("CLIENT_URL", "https://cleanstreet.example/")
	t.Setenv("RATE_LIMIT_RPS", "0.5")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.JWTExpiry != time.Hour {
		t.Errorf("JWTExpiry = %v", cfg.JWTExpiry)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.StatsCacheTTL != 2*time.Minute {
		t.Errorf("StatsCacheTTL = %v", cfg.StatsCacheTTL)
	}
	if cfg.ClientURL != "https://cleanstreet.example" {
		t.Errorf("ClientURL = %q", cfg.ClientURL)
	}
	if cfg.RateLimitRPS != 0.5 {
		t.Errorf("RateLimitRPS = %v", cfg.RateLimitRPS)
	}
}

func TestMySQLDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "3307", DBName: "d"}
	want := "u:p@tcp(h:3307)/d?parseTime=true&charset=utf8mb4&multiStatements=false"
	if got := cfg.MySQLDSN(); got != want {
		t.Errorf("MySQLDSN() = %q, want %q", got, want)
	}
}
