package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/kws-go/internal/conf"
	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/observability/metrics"
)

func TestConfigFromSettings(t *testing.T) {
	s := &conf.Settings{}
	s.Main.Name = "kitchen"
	s.MQTT = conf.MQTTSettings{
		Enabled:  true,
		Broker:   "tcp://broker.local:1883",
		Topic:    "home/kws",
		Username: "user",
		Password: "secret",
		Retain:   true,
	}

	cfg := ConfigFromSettings(s)

	assert.Equal(t, "kitchen", cfg.ClientID)
	assert.Equal(t, "tcp://broker.local:1883", cfg.Broker)
	assert.Equal(t, "home/kws", cfg.Topic)
	assert.True(t, cfg.Retain)
	assert.Equal(t, DefaultConfig().PublishTimeout, cfg.PublishTimeout)
}

func TestPublishBeforeConnect(t *testing.T) {
	c := NewClient(DefaultConfig(), nil)

	assert.False(t, c.IsConnected())
	err := c.Publish(context.Background(), "kws/test", []byte("{}"))
	require.ErrorIs(t, err, ErrNotConnected)

	c.Disconnect()
}

func TestConnectInvalidBroker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Broker = "://nope"

	err := NewClient(cfg, nil).Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestConnectUnresolvableHost(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewMQTTMetrics(reg)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Broker = "tcp://broker.invalid:1883"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = NewClient(cfg, m).Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
}

func TestConnectCooldown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Broker = "://nope"
	c := NewClient(cfg, nil)

	require.Error(t, c.Connect(context.Background()))

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too recent")
}
