package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mombo-site/mombo-api/internal/config"
	"github.com/mombo-site/mombo-api/internal/domain/analysis"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["import-ingredients"])
	assert.True(t, names["migrate"])
}

func TestImportCmd_RequiresFile(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"import-ingredients"})
	assert.Error(t, cmd.Execute())
}

func TestServe_RejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path, "serve"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestCountPolicy(t *testing.T) {
	cfg, err := config.Parse([]byte("analysis:\n  countAllLevels: false\n"))
	require.NoError(t, err)
	assert.Equal(t, analysis.CountTrackedLevels, countPolicy(cfg))

	cfg, err = config.Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, analysis.CountAllLevels, countPolicy(cfg))
}
