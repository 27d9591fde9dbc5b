package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"JOURNEYD_ISSUER", "JOURNEYD_CONSENT_URL", "JOURNEYD_CALLBACK_URL",
		"JOURNEYD_DATABASE_FILE", "JOURNEYD_KEY_TTL", "PORT",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()

	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "http://localhost:8080", cfg.Issuer)
	require.Equal(t, "http://localhost:8080/consent", cfg.ConsentURL)
	require.Equal(t, "http://localhost:8080/api/auth/callback", cfg.CallbackURL)
	require.Equal(t, "journeyd.db", cfg.DatabaseFile)
	require.Equal(t, 24*time.Hour, cfg.KeyTTL)
	require.Equal(t, 7*24*time.Hour, cfg.KeyGracePeriod)
	require.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("JOURNEYD_ISSUER", "https://auth.example")
	t.Setenv("JOURNEYD_CONSENT_URL", "https://ui.example/consent")
	t.Setenv("JOURNEYD_KEY_TTL", "2h")
	t.Setenv("JOURNEYD_KEY_GRACE_PERIOD", "30")
	t.Setenv("PORT", "9090")

	cfg := LoadConfig()

	require.Equal(t, "https://auth.example", cfg.Issuer)
	require.Equal(t, "https://ui.example/consent", cfg.ConsentURL)

	// Issuer-derived default still applies when the callback is unset.
	require.Equal(t, "https://auth.example/api/auth/callback", cfg.CallbackURL)

	require.Equal(t, 2*time.Hour, cfg.KeyTTL)

	// Bare integers are read as minutes.
	require.Equal(t, 30*time.Minute, cfg.KeyGracePeriod)

	require.Equal(t, 9090, cfg.Port)
}

func TestLoadConfigIgnoresGarbageValues(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("JOURNEYD_KEY_TTL", "soon")

	cfg := LoadConfig()

	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 24*time.Hour, cfg.KeyTTL)
}
