package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "gainz.log")

	require.NoError(t, Init(Config{Level: "DEBUG", File: file}))
	assert.Equal(t, log.DebugLevel, Logger.GetLevel())

	Info("file logging enabled", "file", file)

	_, err := os.Stat(file)
	assert.NoError(t, err)
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	require.NoError(t, Init(Config{Level: "loud"}))
	assert.Equal(t, log.InfoLevel, Logger.GetLevel())

	child := With("component", "test")
	assert.NotNil(t, child)
}
