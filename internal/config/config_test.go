package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.GetServerAddr())
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 12.3, cfg.Issuance.CO2KgPerTreeYear)
	assert.Equal(t, 15.00, cfg.Issuance.BasePrice)
	assert.Equal(t, 70.0, cfg.Issuance.DefaultFinalScore)
	assert.Equal(t, "@every 1m", cfg.Worker.SnapshotSchedule)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9090},
		"storage": {"driver": "memory"},
		"issuance": {"base_price": 20.5}
	}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 20.5, cfg.Issuance.BasePrice)
	// Untouched sections keep their defaults.
	assert.Equal(t, 12.3, cfg.Issuance.CO2KgPerTreeYear)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("DATABASE_DBNAME", "ecoledger_test")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "ecoledger_test", cfg.Database.DBName)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	cfg.Storage.Driver = "cassandra"
	assert.Error(t, cfg.Validate())

	cfg.Storage.Driver = "postgres"
	cfg.Issuance.BasePrice = 0
	assert.Error(t, cfg.Validate())

	cfg.Issuance.BasePrice = 15
	cfg.Issuance.DefaultFinalScore = 150
	assert.Error(t, cfg.Validate())
}

func TestDatabaseURL(t *testing.T) {
	db := DatabaseConfig{
		Host: "db", Port: 5432, User: "eco", Password: "secret",
		DBName: "ecoledger", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://eco:secret@db:5432/ecoledger?sslmode=disable", db.GetDatabaseURL())
}
