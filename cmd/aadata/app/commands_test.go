package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewRootCmd mutates package state, so the command tree is built once and
// shared by the subtests.
func TestRootCommand(t *testing.T) {
	cmd := NewRootCmd()

	t.Run("registers subcommands", func(t *testing.T) {
		names := make(map[string]bool)
		for _, sub := range cmd.Commands() {
			names[sub.Name()] = true
		}
		for _, expected := range []string{"fetch", "process", "invalidate", "sources", "provenance", "version"} {
			assert.True(t, names[expected], "missing subcommand %s", expected)
		}
	})

	t.Run("version outputs json", func(t *testing.T) {
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"version", "--format", "json"})
		require.NoError(t, cmd.Execute())

		var info map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &info))
		assert.Contains(t, info, "version")
		assert.Contains(t, info, "go_version")
	})

	t.Run("fetch requires source and version", func(t *testing.T) {
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"fetch"})
		require.Error(t, cmd.Execute())
	})
}
