package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	assert.Equal(t, ":8080", viper.GetString(ListenAddr))
	assert.Equal(t, DriverPostgres, viper.GetString(StoreDriver))
	assert.Equal(t, 0.95, viper.GetFloat64(CompletionThreshold))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("TRAINING_DB_HOST=db.internal\nTRAINING_STORE_DRIVER=postgres\n"), 0o600))
	t.Setenv("TRAINING_NOTIFY_WEBHOOK_URL", "https://hooks.example.com/done")
	t.Cleanup(func() {
		os.Unsetenv("TRAINING_DB_HOST")
		os.Unsetenv("TRAINING_STORE_DRIVER")
	})

	fs := Flags()
	err := Load(fs, []string{"--env-file", envFile, "--store-driver", "memory", "--completion-threshold", "0.9"})
	require.NoError(t, err)

	assert.Equal(t, "db.internal", viper.GetString(DBHost))
	assert.Equal(t, "https://hooks.example.com/done", viper.GetString(NotifyWebhookURL))
	// flags win over the environment
	assert.Equal(t, DriverMemory, viper.GetString(StoreDriver))
	assert.Equal(t, 0.9, viper.GetFloat64(CompletionThreshold))
}

func TestLoadWithoutEnvFile(t *testing.T) {
	fs := Flags()
	require.NoError(t, Load(fs, []string{"--env-file", filepath.Join(t.TempDir(), "absent.env")}))
}
