package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("JWT_SECRET", "secret")

	cfg := LoadConfig()

	assert.Equal(t, 3001, cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.JWTExpiry)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, 15*time.Minute, cfg.Reset.CodeTTL)
	assert.Equal(t, "log", cfg.Mail.Transport)
	assert.False(t, cfg.Storage.Enabled())
	assert.False(t, cfg.TrustProxy)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_EXPIRY", "1h")
	t.Setenv("DB_SSL", "true")
	t.Setenv("RESET_CODE_TTL", "not-a-duration")
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("TRUST_PROXY", "true")

	cfg := LoadConfig()

	assert.False(t, cfg.IsDev())
	assert.Equal(t, time.Hour, cfg.Auth.JWTExpiry)
	assert.True(t, cfg.Database.UseSSL)
	assert.Contains(t, cfg.Database.URL(), "sslmode=require")
	assert.Equal(t, 15*time.Minute, cfg.Reset.CodeTTL)
	assert.True(t, cfg.Storage.Enabled())
	assert.True(t, cfg.TrustProxy)
}

func TestValidate(t *testing.T) {
	t.Setenv("ENV", "test")

	cfg := LoadConfig()
	cfg.Auth.JWTSecret = ""
	cfg.Auth.BcryptCost = 99
	cfg.Mail.Transport = "carrier-pigeon"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "BCRYPT_COST")
	assert.Contains(t, err.Error(), "MAIL_TRANSPORT")
}

func TestValidateResendNeedsKey(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("MAIL_TRANSPORT", "resend")
	t.Setenv("RESEND_API_KEY", "")

	err := LoadConfig().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESEND_API_KEY")
}
