package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 15*time.Second, c.Server.ShutdownTimeout)
	assert.Equal(t, "memory", c.Storage.Type)
	assert.Equal(t, "08:00", c.Scheduler.RunAt)
	assert.True(t, c.Scheduler.RunOnStart)
	assert.Equal(t, "powerledger.audit", c.Kafka.AuditTopic)
	assert.Equal(t, "1000", c.Seed.CapacityKW)
}

func TestParseOverrides(t *testing.T) {
	c, err := Parse([]byte(`
server:
  port: 9090
scheduler:
  run_at: "06:30"
  timezone: UTC
seed:
  stations:
    - code: E01
      name: Villa El Salvador
      order_index: 1
`))
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "06:30", c.Scheduler.RunAt)
	require.Len(t, c.Seed.Stations, 1)
	assert.Equal(t, "E01", c.Seed.Stations[0].Code)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"storage type":          "storage:\n  type: sqlite\n",
		"postgres without dsn":  "storage:\n  type: postgres\n",
		"kafka without brokers": "kafka:\n  enabled: true\n",
		"run_at":                "scheduler:\n  run_at: \"25:00\"\n",
		"timezone":              "scheduler:\n  timezone: Mars/Olympus\n",
		"seed station":          "seed:\n  stations:\n    - code: E01\n",
		"yaml":                  "server: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)

	env := map[string]string{
		"STORAGE_BACKEND": "postgres",
		"DATABASE_URL":    "postgres://ledger@db/ledger",
		"REDIS_HOST":      "redis",
		"KAFKA_BROKERS":   "k1:9092,k2:9092",
		"SCHEDULER_TZ":    "UTC",
		"LOG_LEVEL":       "debug",
	}
	c.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "postgres", c.Storage.Type)
	assert.Equal(t, "postgres://ledger@db/ledger", c.Storage.Postgres.DSN)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "redis", c.Redis.Host)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.NoError(t, c.Validate())
}
