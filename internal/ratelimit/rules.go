package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/bozorlik/miniapp-backend/pkg/config"
)

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// Enabled reports whether rate limiting is switched on at all.
func (r *Rules) Enabled() bool {
	return r.config.Enabled
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	for _, id := range r.config.Whitelist {
		if id == userID {
			return true
		}
	}
	return false
}

// GetEndpointLimit returns the limit and window for a specific API operation.
func (r *Rules) GetEndpointLimit(operation string) (int, time.Duration, error) {
	switch operation {
	case "share":
		return parseRule(r.config.Endpoints.Share)
	case "redeem":
		return parseRule(r.config.Endpoints.Redeem)
	case "resolve":
		return parseRule(r.config.Endpoints.Resolve)
	default:
		return 0, 0, fmt.Errorf("unsupported operation %q", operation)
	}
}

// GetPerUserLimit returns the per-user rate limiting rule.
func (r *Rules) GetPerUserLimit() (int, time.Duration, error) {
	return parseRule(r.config.PerUser)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	return rule.Limit, window, nil
}
