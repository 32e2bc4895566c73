package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("APP_ENV", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 1, cfg.PuntoDeVenta)
	assert.Equal(t, "America/Argentina/Buenos_Aires", cfg.Location.String())
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("APP_ENV", "memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PUNTO_DE_VENTA", "3")
	t.Setenv("BUSINESS_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.InMemory())
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 3, cfg.PuntoDeVenta)
	assert.Equal(t, "UTC", cfg.Location.String())
}

func TestLoadRejectsMissingSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("BUSINESS_TIMEZONE", "Marte/Olympus")

	_, err := Load()
	assert.ErrorContains(t, err, "BUSINESS_TIMEZONE")
}
