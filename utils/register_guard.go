package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RegisterGuard throttles registrations per client IP: a cooldown between
// attempts and a cap on successful registrations per day. Redis is used when
// available; otherwise counters live in process memory.
type RegisterGuard struct {
	rdb         *redis.Client
	cooldown    time.Duration
	maxPerDay   int
	now         func() time.Time
	mu          sync.Mutex
	lastAttempt map[string]time.Time
	daily       map[string]int
}

// NewRegisterGuard creates a guard. Zero cooldown or maxPerDay disables that check.
func NewRegisterGuard(rdb *redis.Client, cooldown time.Duration, maxPerDay int) *RegisterGuard {
	return &RegisterGuard{
		rdb:         rdb,
		cooldown:    cooldown,
		maxPerDay:   maxPerDay,
		now:         time.Now,
		lastAttempt: make(map[string]time.Time),
		daily:       make(map[string]int),
	}
}

func regKey(parts ...string) string {
	key := "reg"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// TryAttempt records an attempt from ip and reports whether it is outside the cooldown.
func (g *RegisterGuard) TryAttempt(ctx context.Context, ip string) bool {
	if g.cooldown <= 0 {
		return true
	}
	if g.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		ok, err := g.rdb.SetNX(ctx, regKey("cooldown", ip), "1", g.cooldown).Result()
		if err == nil {
			return ok
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if last, ok := g.lastAttempt[ip]; ok && now.Sub(last) < g.cooldown {
		return false
	}
	g.lastAttempt[ip] = now
	return true
}

// Allowed reports whether ip is still under its daily registration cap.
func (g *RegisterGuard) Allowed(ctx context.Context, ip string) bool {
	if g.maxPerDay <= 0 {
		return true
	}
	day := g.now().UTC().Format("20060102")
	if g.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		n, err := g.rdb.Get(ctx, regKey("succday", ip, day)).Int()
		if err == redis.Nil {
			return true
		}
		if err == nil {
			return n < g.maxPerDay
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.daily[ip+":"+day] < g.maxPerDay
}

// RecordSuccess counts a completed registration for ip.
func (g *RegisterGuard) RecordSuccess(ctx context.Context, ip string) {
	if g.maxPerDay <= 0 {
		return
	}
	now := g.now().UTC()
	day := now.Format("20060102")
	if g.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		key := regKey("succday", ip, day)
		if err := g.rdb.Incr(ctx, key).Err(); err == nil {
			ttl := now.Truncate(24 * time.Hour).Add(24 * time.Hour).Sub(now)
			_ = g.rdb.Expire(ctx, key, ttl).Err()
			return
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.daily[ip+":"+day]++
}
