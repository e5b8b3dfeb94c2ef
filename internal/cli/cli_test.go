package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/lazypower/rapport/internal/config"
)

func TestAnalyzeText(t *testing.T) {
	cfg := config.Default()

	a := analyzeText(cfg, "I love this, it's amazing and awesome")
	assert.Equal(t, "positive", string(a.Category))
	assert.Equal(t, 12, a.Score)
	assert.Zero(t, a.Toxicity)

	a = analyzeText(cfg, "this is trash and boring")
	assert.Equal(t, "negative", string(a.Category))
	assert.Equal(t, 20, a.Toxicity)
	assert.Equal(t, 2, a.Severity)
	assert.Contains(t, a.Insults, "trash")
}

func TestNewLogger(t *testing.T) {
	log := newLogger(config.LogConfig{Level: "warn", Format: "json"})
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	log = newLogger(config.LogConfig{Level: "bogus", Format: "console"})
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestLoadConfigDBFlag(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "rapport.env")
	require.NoError(t, os.WriteFile(env, []byte("RAPPORT_SERVER_PORT=4000\n"), 0o644))

	configPath, dbPath = env, filepath.Join(dir, "x.db")
	t.Cleanup(func() { configPath, dbPath = "", "" })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "x.db"), cfg.Database.Path)
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.True(t, strings.HasPrefix(buf.String(), "rapport dev"), buf.String())
}

func TestAnalyzeCommandJSON(t *testing.T) {
	dir := t.TempDir()
	configPath = filepath.Join(dir, "missing.env")
	analyzeJSON = true
	t.Cleanup(func() { configPath, analyzeJSON = "", false })

	var buf bytes.Buffer
	analyzeCmd.SetOut(&buf)
	require.NoError(t, runAnalyze(analyzeCmd, []string{"I", "love", "this,", "it's", "amazing", "and", "awesome"}))
	assert.Contains(t, buf.String(), `"category": "positive"`)
}

func TestUsersAndResetCommands(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "rapport.env")
	require.NoError(t, os.WriteFile(env, []byte("RAPPORT_EMBEDDING_PROVIDER=hashing\nRAPPORT_LOG_LEVEL=error\n"), 0o644))
	configPath, dbPath = env, filepath.Join(dir, "rapport.db")
	t.Cleanup(func() { configPath, dbPath, resetForce = "", "", false })

	ctx := context.Background()
	a, err := newApp(ctx)
	require.NoError(t, err)
	_, _, err = a.engine.Evaluate(ctx, "ann", "hello")
	require.NoError(t, err)
	a.close()

	var buf bytes.Buffer
	usersCmd.SetOut(&buf)
	usersCmd.SetContext(ctx)
	require.NoError(t, runUsers(usersCmd, nil))
	assert.Contains(t, buf.String(), "ann")
	assert.Contains(t, buf.String(), "Stranger")

	assert.Error(t, runReset(resetCmd, []string{"ann"}), "reset needs --yes")

	resetForce = true
	resetCmd.SetOut(&bytes.Buffer{})
	resetCmd.SetContext(ctx)
	require.NoError(t, runReset(resetCmd, []string{"ann"}))

	buf.Reset()
	require.NoError(t, runUsers(usersCmd, nil))
	assert.Contains(t, buf.String(), "No users yet.")
}

func TestSendNeedsRunningServer(t *testing.T) {
	sendURL = "http://127.0.0.1:1"
	t.Cleanup(func() { sendURL = "" })

	sendCmd.SetContext(context.Background())
	err := runSend(sendCmd, []string{"hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rapport server at http://127.0.0.1:1")
}
