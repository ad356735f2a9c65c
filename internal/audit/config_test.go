package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := DefaultConfig()
	valid.CollectorURL = "https://siem.example.com/ingest"
	valid.Headers = map[string]string{"Authorization": "Splunk token"}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "export disabled", mutate: func(c *Config) { c.CollectorURL = "" }},
		{name: "bad url", mutate: func(c *Config) { c.CollectorURL = "ftp://x" }, wantErr: true},
		{name: "zero batch", mutate: func(c *Config) { c.BatchSize = 0 }, wantErr: true},
		{name: "bad header", mutate: func(c *Config) { c.Headers = map[string]string{"bad header": "x"} }, wantErr: true},
		{name: "negative interval", mutate: func(c *Config) { c.FlushInterval = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			cfg.Headers = map[string]string{"Authorization": "Splunk token"}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.False(t, cfg.ExportEnabled())
	assert.Equal(t, 10000, cfg.QueueSize)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.FlushInterval)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)

	filled := Config{}.withDefaults()
	assert.Equal(t, DefaultQueueSize, filled.QueueSize)
	assert.Equal(t, DefaultBatchSize, filled.BatchSize)
	assert.Equal(t, DefaultTimeout, filled.Timeout)
	assert.Equal(t, DefaultShutdownTimeout, filled.ShutdownTimeout)
}
