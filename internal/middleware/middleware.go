package middleware

import (
	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/bulk-messenger/internal/logger"
)

// Middleware holds all HTTP middleware
type Middleware struct {
	rdb *redis.Client
	log *logger.Logger
}

// New creates a Middleware. rdb may be nil, which disables rate limiting.
func New(rdb *redis.Client, log *logger.Logger) *Middleware {
	if log == nil {
		log = logger.Nop()
	}
	return &Middleware{rdb: rdb, log: log}
}
