package middleware

import (
	"fmt"
	"strconv"
	"time"

	"flowkora/internal/core/ports"
	"flowkora/pkg/apperror"
	"flowkora/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Endpoint groups with their own rate limit budget.
const (
	RateGroupPublicSession   = "public_session"
	RateGroupWebhook         = "webhook"
	RateGroupMerchant        = "merchant"
	RateGroupAPIKeyIssue     = "api_key_issue"
	RateGroupWalletChallenge = "wallet_challenge"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the default limits per endpoint group.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		RateGroupPublicSession:   {Limit: 120, Window: time.Minute},
		RateGroupWebhook:         {Limit: 300, Window: time.Minute},
		RateGroupMerchant:        {Limit: 100, Window: time.Minute},
		RateGroupAPIKeyIssue:     {Limit: 10, Window: time.Hour},
		RateGroupWalletChallenge: {Limit: 10, Window: time.Minute},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Authenticated routes must install it after the auth middleware so the
// budget is per merchant rather than per client IP.
func RateLimiter(store ports.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := extractIdentifier(c)
		key := fmt.Sprintf("%s:%s", identifier, group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		// Always set rate limit headers
		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			return
		}

		c.Next()
	}
}

// extractIdentifier determines the rate limit key source.
func extractIdentifier(c *gin.Context) string {
	if mid, ok := MerchantID(c); ok {
		return "merchant:" + mid.String()
	}
	return "ip:" + c.ClientIP()
}
