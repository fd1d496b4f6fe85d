package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/gitlab-mcp/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	logglobal "go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.Equal(t, logglobal.GetLoggerProvider(), tel.LoggerProvider())
	assert.False(t, tel.Health().Enabled)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_EnabledLocalCollector(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = "127.0.0.1:4317"

	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, tel.Health().Enabled)
	assert.IsType(t, &sdklog.LoggerProvider{}, tel.LoggerProvider())
	assert.Same(t, tel.LoggerProvider(), logglobal.GetLoggerProvider(), "installed as the global provider")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = tel.Shutdown(ctx)
	assert.False(t, tel.Health().Enabled)
	assert.NoError(t, tel.Shutdown(ctx), "second shutdown is a no-op")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "disabled is always valid", mutate: func(c *Config) { c.Endpoint = "" }},
		{name: "enabled defaults", mutate: func(c *Config) { c.Enabled = true }},
		{name: "missing endpoint", mutate: func(c *Config) { c.Enabled = true; c.Endpoint = "" }, wantErr: true},
		{name: "bad protocol", mutate: func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, wantErr: true},
		{name: "insecure remote", mutate: func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317" }, wantErr: true},
		{name: "secure remote", mutate: func(c *Config) {
			c.Enabled = true
			c.Endpoint = "otel.example.com:4317"
			c.Insecure = false
		}},
		{name: "http scheme local", mutate: func(c *Config) {
			c.Enabled = true
			c.Protocol = ProtocolHTTP
			c.Endpoint = "http://localhost:4318"
		}},
		{name: "sample rate", mutate: func(c *Config) { c.Enabled = true; c.SampleRate = 2 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.TelemetryConfig{
		Enabled:     true,
		Endpoint:    "localhost:4318",
		Protocol:    ProtocolHTTP,
		ServiceName: "gl",
		Insecure:    true,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "localhost:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "gl", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	require.NoError(t, cfg.Validate())
}

func TestTestTelemetry_RecordsMetrics(t *testing.T) {
	tt := NewTestTelemetry()
	counter, err := tt.Meter("test").Int64Counter("probe_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	_, ok := tt.Metric(t, "probe_total")
	assert.True(t, ok)

	_, span := tt.Tracer("test").Start(context.Background(), "probe")
	span.End()
	assert.Equal(t, []string{"probe"}, tt.SpanNames())
}
