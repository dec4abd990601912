package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/prooflink/internal/config"
)

const keyPublicReview = "review:public:ip:%s"

// PublicReviewLimiter throttles the anonymous review endpoints per
// client IP, which also keeps token enumeration slow. Disabled it
// allows everything.
type PublicReviewLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewPublicReviewLimiter(cfg config.Config) (*PublicReviewLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.PublicRate <= 0 || limitCfg.PublicBurst <= 0 {
		return nil, errors.New("public review rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &PublicReviewLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.PublicRate,
		burst:   limitCfg.PublicBurst,
	}, nil
}

func (l *PublicReviewLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *PublicReviewLimiter) Allow(ctx context.Context, clientIP string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyPublicReview, strings.TrimSpace(clientIP)), l.rate, l.burst)
}

func parseFloat(value string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(value), 64)
}
