package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, "marketplace development")
}

func TestSeedAndReset(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")

	out := execute(t, "seed", "--sqlite-path", db, "--user", "demo")
	assert.Contains(t, out, "Seeded 9 products as demo")

	out = execute(t, "reset", "--sqlite-path", db)
	assert.Contains(t, out, "Storefront state erased (3 slots were stored)")

	out = execute(t, "seed", "--sqlite-path", db, "--user", "erin")
	assert.Contains(t, out, "as erin")
}
