package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// The "-h" (help) flag should cause cli.Parse to return shouldExit=true.
	out := &bytes.Buffer{}
	err := run(out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_InvalidDefinition(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "main.hcl")
	err := os.WriteFile(filePath, []byte(`node "buffer" "b" {`), 0600)
	require.NoError(t, err, "failed to set up test file")

	out := &bytes.Buffer{}
	runErr := run(out, []string{"--log-level", "error", filePath})

	require.Error(t, runErr, "run() should surface configuration load failures")
	require.Contains(t, runErr.Error(), "failed to load configuration")
}

func TestRun_SingleFrame(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "main.hcl")
	graph := `
node "buffer" "b" {}
node "present" "p" {}
connect {
  from = "b.handle"
  to   = "p.source"
}
`
	require.NoError(t, os.WriteFile(filePath, []byte(graph), 0600))

	out := &bytes.Buffer{}
	err := run(out, []string{"--frames", "1", "--log-level", "error", "--inspect", filePath})

	require.NoError(t, err)
	require.Contains(t, out.String(), "p", "inspect output should list the sink node")
}
