package redis

import (
	"time"

	"github.com/redis/rueidis"
)

// NewStoreForTest wraps an existing rueidis client, usually a mock.
func NewStoreForTest(c rueidis.Client, ttl time.Duration) *Store {
	return newStore(c, ttl)
}
