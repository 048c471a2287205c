package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []int{25, 50, 100, -1}, cfg.ItemsPerPageOptions)
	assert.Equal(t, 12*time.Hour, cfg.JWTTTL)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.True(t, cfg.AuditEnabled)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("APP_PORT=9999\nITEMS_PER_PAGE=40\n"), 0o600))

	t.Setenv("ENV_FILE", file)
	t.Setenv("APP_ENV", "development")
	t.Setenv("APP_PORT", "7000")
	t.Setenv("ITEMS_PER_PAGE", "")
	t.Cleanup(func() { os.Unsetenv("ITEMS_PER_PAGE") })
	os.Unsetenv("ITEMS_PER_PAGE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, 40, cfg.DefaultItemsPerPage)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseIntList(t *testing.T) {
	got, err := parseIntList(" 10, 20 ,,-1")
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, -1}, got)

	_, err = parseIntList("ten")
	assert.Error(t, err)
}
