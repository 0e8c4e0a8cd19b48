package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.False(t, cfg.Query.LegacySkip)
	assert.Equal(t, "development-secret", cfg.SigningSecret())
	assert.Contains(t, cfg.Database.URL, "postgres://")
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("QUERY_LEGACY_SKIP", "true")
	t.Setenv("REPAIR_SYNC_INTERVAL", "45")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMongo, cfg.Store.Driver)
	assert.Equal(t, 2*time.Hour, cfg.JWT.TTL)
	assert.True(t, cfg.Query.LegacySkip)
	assert.Equal(t, 45*time.Second, cfg.Repair.SyncInterval)
	assert.Equal(t, "s3cret", cfg.SigningSecret())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		driver  string
		secret  string
		wantErr string
	}{
		{name: "unknown driver", env: "development", driver: "sqlite", wantErr: "STORE_DRIVER"},
		{name: "missing secret in production", env: "production", driver: DriverMemory, wantErr: "JWT_SECRET"},
		{name: "missing secret in development", env: "development", driver: DriverMemory},
		{name: "production with secret", env: "production", driver: DriverPostgres, secret: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Environment: tt.env,
				Store:       StoreConfig{Driver: tt.driver},
				JWT:         JWTConfig{Secret: tt.secret, TTL: time.Hour},
				Upload:      UploadConfig{MaxBytes: 1},
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
