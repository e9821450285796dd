package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "none.yaml"), "--log-level", "error"))
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestDemo(t *testing.T) {
	out := runCLI(t, "demo", "-c", "5")
	assert.Contains(t, out, "requests=5 ok=5 session_expired=0 refresh_calls=1")

	out = runCLI(t, "demo", "-c", "3", "--revoke")
	assert.Contains(t, out, "requests=3 ok=0 session_expired=3 refresh_calls=1")
}
