package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "test_value")
	assert.Equal(t, "test_value", GetEnv("TEST_ENV_VAR", "default_value"))
	assert.Equal(t, "default_value", GetEnv("NON_EXISTENT_VAR", "default_value"))
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "expenses-api", s.ServiceQueueName)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rabbitMqHost: broker
rabbitMqPort: 5673
serviceQueueName: from-file
testQueue: file-test-queue
`), 0o600))
	t.Setenv("TEST_QUEUE", "env-test-queue")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "broker", s.RabbitMQHost)
	assert.Equal(t, 5673, s.RabbitMQPort)
	assert.Equal(t, "from-file", s.ServiceQueueName)
	assert.Equal(t, "env-test-queue", s.TestQueue)
	assert.Equal(t, "guest", s.RabbitMQUsername)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("RABBITMQ_PORT", "abc")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'abc' is not a valid port")
}

func TestValidateTransport(t *testing.T) {
	s := Defaults()
	s.EventTransport = "carrier-pigeon"
	assert.Error(t, s.Validate())
	s.EventTransport = TransportKafka
	assert.NoError(t, s.Validate())
}
