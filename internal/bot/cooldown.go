package bot

import (
	"math"
	"sync"
	"time"
)

// Cooldown is a per-user token bucket: rate uses per interval.
type Cooldown struct {
	name     string
	per      time.Duration
	rate     float64 // tokens per second
	capacity float64

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastRef  time.Time
	lastSeen time.Time
}

// NewCooldown allows rate uses per interval for each user.
func NewCooldown(name string, rate int, per time.Duration) *Cooldown {
	if rate < 1 {
		rate = 1
	}
	if per <= 0 {
		per = time.Second
	}
	return &Cooldown{
		name:     name,
		per:      per,
		rate:     float64(rate) / per.Seconds(),
		capacity: float64(rate),
		buckets:  make(map[string]*bucket, 64),
	}
}

// Name identifies the cooldown in logs.
func (c *Cooldown) Name() string { return c.name }

func (c *Cooldown) getBucket(key string, now time.Time) *bucket {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.buckets[key]
	if b == nil {
		b = &bucket{tokens: c.capacity, lastRef: now, lastSeen: now}
		c.buckets[key] = b
	}
	return b
}

// Allow consumes one use for key. When none is left it returns false
// and how long until the next one.
func (c *Cooldown) Allow(key string, now time.Time) (bool, time.Duration) {
	b := c.getBucket(key, now)

	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRef).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(c.capacity, b.tokens+elapsed*c.rate)
		b.lastRef = now
	}

	if b.tokens >= 1.0 {
		b.tokens -= 1.0
		b.lastSeen = now
		return true, 0
	}

	needed := 1.0 - b.tokens
	retry := time.Duration(math.Ceil(needed / c.rate * float64(time.Second)))
	return false, retry
}

// Sweep drops buckets idle for a whole interval, which are full again
// and carry no state. It returns how many were dropped.
func (c *Cooldown) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for key, b := range c.buckets {
		b.mu.Lock()
		idle := now.Sub(b.lastSeen) >= c.per
		b.mu.Unlock()
		if idle {
			delete(c.buckets, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of tracked users.
func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}
