package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pineapple-labs/mstyadmin/internal/mcpserver"
)

func TestRootCommand_PropagatesVersion(t *testing.T) {
	old := version
	version = "1.2.3"
	t.Cleanup(func() {
		version = old
		mcpserver.Version = old
	})

	cmd := newRootCommand()
	assert.Equal(t, "1.2.3", cmd.Version)
	assert.Equal(t, "1.2.3", mcpserver.Version)
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	cmd := newRootCommand()
	got := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		got[sub.Name()] = true
	}
	for _, name := range []string{"serve", "calibrate", "compare", "trends", "triggers", "status"} {
		assert.True(t, got[name], "missing subcommand %q", name)
	}
}
