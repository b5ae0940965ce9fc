package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "casegraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BusRabbitMQ, c.Bus.Adapter)
	assert.Equal(t, "case-events", c.Bus.Topic)
	assert.Equal(t, 10*time.Second, c.Graph.Timeout)
	assert.Equal(t, 5*time.Second, c.Bus.Timeout)
	assert.False(t, c.ArchiveEnabled())
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
bus:
  adapter: nats
  nats_url: nats://bus:4222
graph:
  adapter: neo4j
  timeout: 3s
  neo4j:
    uri: neo4j://graph:7687
worker:
  concurrency: 8
s3:
  bucket: case-uploads
`)
	t.Setenv("CONFIG_FILE", path)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BusNATS, c.Bus.Adapter)
	assert.Equal(t, "nats://bus:4222", c.Bus.NATSURL)
	assert.Equal(t, GraphNeo4j, c.Graph.Adapter)
	assert.Equal(t, 3*time.Second, c.Graph.Timeout)
	assert.Equal(t, "neo4j://graph:7687", c.Graph.Neo4j.URI)
	assert.Equal(t, 8, c.Worker.Concurrency)
	assert.True(t, c.ArchiveEnabled())
	// untouched keys keep their defaults
	assert.Equal(t, "case-events", c.Bus.Topic)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
graph:
  adapter: neo4j
  timeout: 3s
worker:
  concurrency: 8
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("GRAPH_ADAPTER", "postgres")
	t.Setenv("GRAPH_TIMEOUT", "2")
	t.Setenv("WORKER_CONCURRENCY", "2")
	t.Setenv("CASE_TOPIC", "cases.v2")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, GraphPostgres, c.Graph.Adapter)
	assert.Equal(t, 2*time.Second, c.Graph.Timeout)
	assert.Equal(t, 2, c.Worker.Concurrency)
	assert.Equal(t, "cases.v2", c.Bus.Topic)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRejectsUnknownAdapter(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("BUS_ADAPTER", "kafka")

	_, err := Load()
	assert.ErrorContains(t, err, "kafka")
}

func TestRabbitMQURL(t *testing.T) {
	r := RabbitMQ{User: "case", Password: "s3cr3t", Host: "mq", Port: "5672"}
	assert.Equal(t, "amqp://case:s3cr3t@mq:5672/", r.URL())
}
