package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lankyjo/coast/internal/config"
	"github.com/lankyjo/coast/internal/db"
)

// execute runs the root command with a config file pointing at a fresh
// data directory.
func execute(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "coast.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("data_dir: "+dataDir+"\nlog:\n  level: error\n"), 0o644))

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "n", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = newLogger(config.LogConfig{Level: "loud"}, &buf)
	assert.EqualError(t, err, `invalid log level "loud"`)

	_, err = newLogger(config.LogConfig{Level: "info", Format: "xml"}, &buf)
	assert.ErrorContains(t, err, "invalid log format")
}

func TestMigrate(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, dir, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "database ready in "+dir)
	assert.FileExists(t, filepath.Join(dir, "coast.db"))
}

func TestAdminSync(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("COAST_ADMIN_EMAILS", "boss@coast.test")

	out, err := execute(t, dir, "admin", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "promoted 1 admin account(s)")

	out, err = execute(t, dir, "admin", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "promoted 0 admin account(s)")

	store, err := db.Open(dir)
	require.NoError(t, err)
	defer store.Close()
	u, err := store.GetUserByEmail(context.Background(), "boss@coast.test")
	require.NoError(t, err)
	assert.Equal(t, db.RoleAdmin, u.Role)
}

func TestOutboxDrain_Empty(t *testing.T) {
	out, err := execute(t, t.TempDir(), "outbox", "drain")
	require.NoError(t, err)
	assert.Contains(t, out, "delivered 0 event(s)")
}

func TestInvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "coast.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("no_such_key: 1\n"), 0o644))

	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath, "migrate"})
	assert.ErrorContains(t, cmd.Execute(), "parse config")
}
