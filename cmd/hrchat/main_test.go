package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdFlagDefaults(t *testing.T) {
	t.Setenv("CHATBOT_URL", "http://chat.internal:8000")
	cmd := newRootCmd()

	url, err := cmd.Flags().GetString("url")
	require.NoError(t, err)
	assert.Equal(t, "http://chat.internal:8000", url)

	layout, err := cmd.Flags().GetString("layout")
	require.NoError(t, err)
	assert.Equal(t, "03:04 PM", layout)

	timeout, err := cmd.Flags().GetDuration("timeout")
	require.NoError(t, err)
	assert.Zero(t, timeout)
}

func TestRootCmdRejectsBadURL(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--url", "ftp://nope"})
	cmd.SetOut(new(nopWriter))
	cmd.SetErr(new(nopWriter))

	assert.Error(t, cmd.Execute())
}

func TestNewLogger(t *testing.T) {
	logger, closeLog, err := newLogger("")
	require.NoError(t, err)
	logger.Info("discarded")
	closeLog()

	path := filepath.Join(t.TempDir(), "hrchat.log")
	logger, closeLog, err = newLogger(path)
	require.NoError(t, err)
	logger.Info("written")
	closeLog()
	assert.FileExists(t, path)

	_, _, err = newLogger(filepath.Join(t.TempDir(), "missing", "x.log"))
	assert.Error(t, err)
}

type nopWriter struct{}

func (*nopWriter) Write(p []byte) (int, error) { return len(p), nil }
