package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/cppla/billboard/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("chatty"))
}

func TestAccessLoggerWritesNextToAppLog(t *testing.T) {
	dir := t.TempDir()
	cfg := config.AppConfig{LogLevel: "info", LogPath: filepath.Join(dir, "app", "billboard.log")}

	_, err := InitLogger(cfg)
	require.NoError(t, err)
	access, err := NewAccessLogger(cfg)
	require.NoError(t, err)

	access.Info("GET /health")
	require.NoError(t, access.Sync())

	b, err := os.ReadFile(filepath.Join(dir, "app", "access.log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"GET /health"`)
}
