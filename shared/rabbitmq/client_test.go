package rabbitmq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishBackoff(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		attempt  int
		expected time.Duration
	}{
		{
			name: "first retry uses base delay",
			config: &Config{
				PublishRetryDelay:  100 * time.Millisecond,
				PublishBackoffMult: 2.0,
			},
			attempt:  0,
			expected: 100 * time.Millisecond,
		},
		{
			name: "delay doubles per attempt with multiplier 2",
			config: &Config{
				PublishRetryDelay:  100 * time.Millisecond,
				PublishBackoffMult: 2.0,
			},
			attempt:  2,
			expected: 400 * time.Millisecond,
		},
		{
			name: "custom multiplier grows the delay",
			config: &Config{
				PublishRetryDelay:  100 * time.Millisecond,
				PublishBackoffMult: 1.5,
			},
			attempt:  2,
			expected: 225 * time.Millisecond,
		},
		{
			name: "larger multiplier",
			config: &Config{
				PublishRetryDelay:  50 * time.Millisecond,
				PublishBackoffMult: 3.0,
			},
			attempt:  3,
			expected: 1350 * time.Millisecond,
		},
		{
			name:     "zero config falls back to 100ms doubling",
			config:   &Config{},
			attempt:  1,
			expected: 200 * time.Millisecond,
		},
		{
			name: "multiplier at or below one falls back to doubling",
			config: &Config{
				PublishRetryDelay:  100 * time.Millisecond,
				PublishBackoffMult: 0.5,
			},
			attempt:  3,
			expected: 800 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{config: tt.config}
			assert.Equal(t, tt.expected, c.publishBackoff(tt.attempt))
		})
	}
}
