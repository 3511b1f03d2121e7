package ratelimit

import (
	"testing"

	"github.com/netsblox/cloud/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestStandardMiddleware(t *testing.T) {
	// Create config with string rate limit values
	cfg := &config.Config{
		RateLimitApiGlobal:   "100-M",
		RateLimitApiPublic:   "100-M",
		RateLimitApiProjects: "50-M",
		RateLimitApiInvites:  "200-M",
		RateLimitWsConnectIp: "50-M",
		RateLimitWsMessage:   "100-M",
	}

	// Create rate limiter
	rl, err := NewRateLimiter(cfg, nil)
	assert.NoError(t, err)

	// Get standard middleware
	middleware := rl.StandardMiddleware()
	assert.NotNil(t, middleware)
}
