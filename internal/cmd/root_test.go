package cmd

import (
	"io"
	"testing"

	"github.com/appstash/appstash/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()
	logger := zerolog.New(io.Discard)
	cfg := &config.Config{}

	cmd := NewRootCmd(cfg, &logger, "1.0.0")

	assert.NotNil(t, cmd)
	assert.Equal(t, "appstash", cmd.Use)
}

func TestRootCmdRegistersSubcommands(t *testing.T) {
	t.Parallel()
	logger := zerolog.New(io.Discard)
	cfg := &config.Config{}

	cmd := NewRootCmd(cfg, &logger, "1.0.0")

	expected := []string{
		"install", "deinstall", "list", "info",
		"backup", "reinstall", "history", "doctor",
		"completion", "version",
	}

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	for _, name := range expected {
		assert.True(t, names[name], "missing subcommand %q", name)
	}
}

func TestRootCmdPlainFlag(t *testing.T) {
	t.Parallel()
	logger := zerolog.New(io.Discard)
	cfg := &config.Config{}

	cmd := NewRootCmd(cfg, &logger, "1.0.0")

	flag := cmd.PersistentFlags().Lookup("plain")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
