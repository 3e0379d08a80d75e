package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sourcechat-backend/internal/middleware"
)

func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

// slidingWindowScript counts the current fixed window plus the previous one
// weighted by how much of it still overlaps the sliding window. It returns
// the remaining budget, or -1 when the request is rejected.
var slidingWindowScript = redis.NewScript(`
local currentKey  = KEYS[1]
local previousKey = KEYS[2]
local limit  = tonumber(ARGV[1])
local now    = tonumber(ARGV[2])
local window = tonumber(ARGV[3])

local current  = tonumber(redis.call("GET", currentKey) or "0")
local previous = tonumber(redis.call("GET", previousKey) or "0")
local elapsed  = (now % window) / window
previous = math.floor((1 - elapsed) * previous)

if previous + current >= limit then
  return -1
end

local updated = redis.call("INCR", currentKey)
if updated == 1 then
  redis.call("PEXPIRE", currentKey, window * 2 + 1000)
end
return limit - (updated + previous)
`)

// RedisSlidingWindow is the shared limiter behind the request gate.
type RedisSlidingWindow struct {
	client redis.Scripter
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisSlidingWindow(client redis.Scripter, limit int, window time.Duration) *RedisSlidingWindow {
	return &RedisSlidingWindow{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *RedisSlidingWindow) Allow(ctx context.Context, key string) (middleware.WindowResult, error) {
	now := l.now()
	currentKey, previousKey, reset := windowKeys(key, now, l.window)

	remaining, err := slidingWindowScript.Run(ctx, l.client,
		[]string{currentKey, previousKey},
		l.limit, now.UnixMilli(), l.window.Milliseconds(),
	).Int64()
	if err != nil {
		return middleware.WindowResult{}, fmt.Errorf("sliding window %s: %w", key, err)
	}

	res := middleware.WindowResult{
		Success: remaining >= 0,
		Limit:   l.limit,
		Reset:   reset,
	}
	if remaining > 0 {
		res.Remaining = int(remaining)
	}
	return res, nil
}

// windowKeys names the fixed windows around now and the instant the
// current one ends.
func windowKeys(key string, now time.Time, window time.Duration) (current, previous string, reset time.Time) {
	w := window.Milliseconds()
	if w <= 0 {
		w = 1
	}
	idx := now.UnixMilli() / w
	current = fmt.Sprintf("%s:%d", key, idx)
	previous = fmt.Sprintf("%s:%d", key, idx-1)
	reset = time.UnixMilli((idx + 1) * w)
	return current, previous, reset
}
