package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, NotifyDirect, cfg.NotifyMode)
	assert.Equal(t, 10*time.Second, cfg.CryptoPayTimeout)
	assert.Equal(t, 10*time.Second, cfg.TelegramTimeout)
	assert.False(t, cfg.AllowSimulation)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("NOTIFY_MODE", "kafka")
	t.Setenv("ALLOW_SIMULATION", "true")
	t.Setenv("LOOKUP_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Len(t, cfg.KafkaBrokers, 2)
	assert.Equal(t, int64(-100123), cfg.TelegramChatID)
	assert.Equal(t, NotifyKafka, cfg.NotifyMode)
	assert.True(t, cfg.AllowSimulation)
	assert.Equal(t, 3*time.Second, cfg.LookupTimeout)
}

func TestLoad_UnknownNotifyMode(t *testing.T) {
	t.Setenv("NOTIFY_MODE", "pigeon")

	_, err := Load()
	assert.Error(t, err)
}
