package middleware

import (
	"net/http"
	"strconv"

	"autopartes/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewLimiter builds a per-IP limiter from a formatted rate ("20-M", "1000-H").
// Counters live in Redis when rdb is set, so every API replica shares them;
// otherwise they are process-local.
func NewLimiter(rate string, rdb *redis.Client, prefix string) (*limiter.Limiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	opts := limiter.StoreOptions{Prefix: "limiter:" + prefix}
	var store limiter.Store
	if rdb != nil {
		store, err = sredis.NewStoreWithOptions(rdb, opts)
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.NewStoreWithOptions(opts)
	}
	return limiter.New(store, r), nil
}

// RateLimit rejects requests once the caller's IP exhausts its quota.
// A failing limiter store lets the request through.
func RateLimit(l *limiter.Limiter, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		lc, err := l.Get(c.Request.Context(), ip)
		if err != nil {
			log.Error().Err(err).Str("ip", ip).Msg("rate limiter no disponible")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lc.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lc.Remaining, 10))
		if lc.Reached {
			log.Warn().Str("ip", ip).Int64("limit", lc.Limit).Str("path", c.Request.URL.Path).Msg("rate limit excedido")
			c.Header("X-RateLimit-Reset", strconv.FormatInt(lc.Reset, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.New(msg))
			return
		}
		c.Next()
	}
}
