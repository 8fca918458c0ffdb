package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  port: 9090
database:
  driver: mysql
  host: db
  user: mombo
  password: secret
  name: mombo
minio:
  endpoint: minio:9000
  bucketName: mombo
ocr:
  url: https://ocr.example.com/general
  secret: s3cr3t
  timeout: 5s
normalizer:
  url: http://correction:8000/correct
auth:
  apiKeys:
    key-1: 1
`

func TestLoad_DefaultsAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, 5*time.Second, cfg.OCR.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Normalizer.Timeout)
	assert.Equal(t, "http", cfg.Normalizer.Backend)
	assert.Equal(t, 400, cfg.Analysis.TargetWidth)
	assert.True(t, cfg.CountAllLevels())
	assert.Equal(t, int64(1), cfg.Auth.APIKeys["key-1"])
	assert.Equal(t, "mombo:secret@tcp(db:3306)/mombo?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())
}

func TestParse_CountAllLevelsFalse(t *testing.T) {
	cfg, err := Parse([]byte(sample + "analysis:\n  countAllLevels: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.CountAllLevels())
}

func TestPostgresDSN(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: postgres\n  host: pg\n  user: u\n  password: p@ss\n  name: mombo\n"))
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres://u:p%40ss@pg:5432/mombo?sslmode=disable", cfg.PostgresDSN())
}

func TestApplyEnv(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	env := map[string]string{"MOMBO_OCR_SECRET": "from-env", "MOMBO_PORT": "7000", "MOMBO_DB_PASSWORD": ""}
	cfg.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })

	assert.Equal(t, "from-env", cfg.OCR.Secret)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Database.Password, "empty env values are ignored")
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: sqlite\nnormalizer:\n  backend: openai\n"))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"database.driver", "minio.endpoint", "ocr.url", "ocr.secret", "normalizer.openai.apiKey", "auth.apiKeys"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_AdminKeysMustBeAPIKeys(t *testing.T) {
	cfg, err := Parse([]byte(sample + "  adminKeys: [key-1]\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"key-1"}, cfg.Auth.AdminKeys)

	cfg, err = Parse([]byte(sample + "  adminKeys: [unknown]\n"))
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "auth.adminKeys[0]")
}
