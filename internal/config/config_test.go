package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	req := require.New(t)
	cfg := Load()

	req.Equal(":8080", cfg.ServerAddr)
	req.Equal(15*time.Second, cfg.ReadTimeout)
	req.Equal(20, cfg.DBMaxConnections())
	req.Equal("./uploads", cfg.UploadDir)
	req.Equal(int64(10<<20), cfg.MaxUploadSize)
	req.Equal(10000, cfg.MaxWSConnections)
	req.Equal("*", cfg.CORSAllowedOrigins)
	req.Empty(cfg.RedisURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("DATABASE_URL", "postgres://test@db:5432/test")
	t.Setenv("DB_MAX_CONNECTIONS", "5")
	t.Setenv("MAX_UPLOAD_SIZE_MB", "2")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")

	cfg := Load()

	req.Equal(":9090", cfg.ServerAddr)
	req.Equal("postgres://test@db:5432/test", cfg.DatabaseURL())
	req.Equal(5, cfg.DBMaxConnections())
	req.Equal(int64(2<<20), cfg.MaxUploadSize)
	req.Equal("redis://cache:6379/0", cfg.RedisURL)
}

func TestEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("DB_MAX_CONNECTIONS", "lots")
	cfg := Load()
	require.Equal(t, 20, cfg.DBMaxConnections())
}
