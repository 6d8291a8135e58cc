package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogCommand_PrintsFullTable(t *testing.T) {
	var buf bytes.Buffer
	catalogCmd.SetOut(&buf)

	require.NoError(t, catalogCmd.RunE(catalogCmd, nil))

	out := buf.String()
	assert.Contains(t, out, "CODE")
	assert.Contains(t, out, "High")
	assert.Contains(t, out, "Moderate")
	assert.Contains(t, out, "Low")
	// One row per code plus the header.
	assert.Equal(t, 18, bytes.Count([]byte(out), []byte("\n")))
}
