package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	ginmiddleware "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

// ParseRate parses rates like "10-2m", "30-1m", "5-1h" or "20-10s"
func ParseRate(rateStr string) (limiter.Rate, error) {
	parts := strings.Split(rateStr, "-")
	if len(parts) != 2 {
		return limiter.Rate{}, fmt.Errorf("invalid rate format: %s", rateStr)
	}

	limit, err := strconv.Atoi(parts[0])
	if err != nil || limit <= 0 {
		return limiter.Rate{}, fmt.Errorf("invalid limit: %s", parts[0])
	}

	period, err := time.ParseDuration(parts[1])
	if err != nil || period <= 0 {
		return limiter.Rate{}, fmt.Errorf("invalid period: %s", parts[1])
	}

	return limiter.Rate{Period: period, Limit: int64(limit)}, nil
}

// NewRateLimitStore returns a Redis backed store when client is set, an
// in-process store otherwise
func NewRateLimitStore(client *redis.Client, routeID string, period time.Duration) (limiter.Store, error) {
	options := limiter.StoreOptions{
		Prefix:          "rate_limiter:" + routeID,
		MaxRetry:        3,
		CleanUpInterval: period,
	}
	if client == nil {
		return memory.NewStoreWithOptions(options), nil
	}

	store, err := redisstore.NewStoreWithOptions(client, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis store for route %s: %w", routeID, err)
	}
	return store, nil
}

// RateLimiter limits requests per authenticated user, or per client IP
// for anonymous requests
func RateLimiter(store limiter.Store, rate limiter.Rate, logger *logrus.Logger) gin.HandlerFunc {
	instance := limiter.New(store, rate)

	return ginmiddleware.NewMiddleware(instance,
		ginmiddleware.WithKeyGetter(rateLimitKey),
		ginmiddleware.WithLimitReachedHandler(func(c *gin.Context) {
			logger.WithFields(logrus.Fields{
				"key":  rateLimitKey(c),
				"path": c.Request.URL.Path,
			}).Warn("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "RATE_LIMITED",
				"message": "Too many requests, slow down",
			})
		}),
		ginmiddleware.WithErrorHandler(func(c *gin.Context, err error) {
			// Fail open when the store is unavailable.
			logger.WithError(err).Error("Rate limiter store failed")
			c.Next()
		}),
	)
}

func rateLimitKey(c *gin.Context) string {
	if userCtx, ok := GetUserContext(c); ok {
		return "user:" + userCtx.UserID.String()
	}
	return "ip:" + c.ClientIP()
}
