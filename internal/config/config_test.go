package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 30*time.Second, cfg.RelayInterval)
	assert.Equal(t, "COAST_OUTBOX_QUEUE", cfg.Temporal.TaskQueue)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coast.yaml")
	yml := `
addr: ":9000"
base_url: "https://coast.example.com"
admin_emails: ["boss@example.com"]
relay_interval: 5s
email:
  from_email: "Team <team@example.com>"
ai:
  model: "gemini-test"
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("COAST_BASE_URL", "https://override.example.com")
	t.Setenv("SMTP_ENABLED", "TRUE")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "https://override.example.com", cfg.BaseURL)
	assert.Equal(t, []string{"boss@example.com"}, cfg.AdminEmails)
	assert.Equal(t, 5*time.Second, cfg.RelayInterval)
	assert.Equal(t, "Team <team@example.com>", cfg.Email.FromEmail)
	assert.True(t, cfg.Email.SMTPEnabled)
	assert.Equal(t, "gemini-test", cfg.AI.Model)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coast.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adress: \":1\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
