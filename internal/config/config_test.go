package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
app:
  port: 8084
mongo:
  uri: mongodb://localhost:27017
  db: testdb
redis:
  addr: localhost:6379
kafka:
  brokers:
    - localhost:9092
  topic: messaging.message-created
jwt:
  alg: HS256
  hs_secret: secret
mail:
  base_url: http://localhost:8085
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.EqualValues(t, 5<<20, cfg.Attachments.MaxBytes)
	assert.Contains(t, cfg.Attachments.AllowedTypes, "application/pdf")
	assert.Contains(t, cfg.Attachments.AllowedTypes, "image/jpeg")
	assert.Equal(t, 120, cfg.RateLimit.PerMinute)
	assert.Equal(t, "mail", cfg.Mail.Service)
	assert.Equal(t, "8084", cfg.App.PortString())
	assert.NotZero(t, cfg.ShutdownTimeout)
	assert.NotZero(t, cfg.MailTimeout)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		mangle  string
		wantErr string
	}{
		{"missing port", "app:\n  env: dev\n", "app.port"},
		{"missing mongo", "app:\n  port: 1\n", "mongo.uri"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.mangle))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadBadJWTAlg(t *testing.T) {
	cfgYAML := minimalYAML + "\n"
	cfg := writeConfig(t, cfgYAML)
	_, err := Load(cfg)
	require.NoError(t, err)

	bad := writeConfig(t, `
app:
  port: 8084
mongo:
  uri: mongodb://localhost:27017
  db: testdb
redis:
  addr: localhost:6379
kafka:
  brokers:
    - localhost:9092
  topic: t
jwt:
  alg: none
mail:
  base_url: http://localhost:8085
`)
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.alg")
}
