package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	voteKey             = "vote:%d:%s" // String: trackID:clientID, exists while the cooldown runs
	defaultVoteCooldown = time.Minute
)

// VoteGuard rate-limits votes per client and track.
type VoteGuard interface {
	// Allow reports whether client may vote on trackID now, and if so starts
	// its cooldown.
	Allow(ctx context.Context, trackID int64, client string) (bool, error)
	// Forget ends the cooldown early, for a vote that was never recorded.
	Forget(ctx context.Context, trackID int64, client string) error
}

// RedisVoteGuard keeps cooldowns as expiring keys so every server instance
// shares them.
type RedisVoteGuard struct {
	client   *redis.Client
	cooldown time.Duration
}

// NewRedisVoteGuard 创建投票限流器
func NewRedisVoteGuard(client *redis.Client, cooldown time.Duration) *RedisVoteGuard {
	if cooldown <= 0 {
		cooldown = defaultVoteCooldown
	}
	return &RedisVoteGuard{client: client, cooldown: cooldown}
}

// VoteKey 根据歌曲ID和客户端生成Redis键
func VoteKey(trackID int64, client string) string {
	return fmt.Sprintf(voteKey, trackID, client)
}

func (g *RedisVoteGuard) Allow(ctx context.Context, trackID int64, client string) (bool, error) {
	if g.client == nil {
		return false, fmt.Errorf("Redis client not initialized")
	}
	ok, err := g.client.SetNX(ctx, VoteKey(trackID, client), time.Now().Unix(), g.cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set vote cooldown: %w", err)
	}
	return ok, nil
}

func (g *RedisVoteGuard) Forget(ctx context.Context, trackID int64, client string) error {
	if g.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	if err := g.client.Del(ctx, VoteKey(trackID, client)).Err(); err != nil {
		return fmt.Errorf("failed to clear vote cooldown: %w", err)
	}
	return nil
}

// MemoryVoteGuard is the single-process fallback used when Redis is not
// configured.
type MemoryVoteGuard struct {
	mu       sync.Mutex
	cooldown time.Duration
	until    map[string]time.Time
	now      func() time.Time
}

// NewMemoryVoteGuard creates an in-process guard.
func NewMemoryVoteGuard(cooldown time.Duration) *MemoryVoteGuard {
	if cooldown <= 0 {
		cooldown = defaultVoteCooldown
	}
	return &MemoryVoteGuard{
		cooldown: cooldown,
		until:    make(map[string]time.Time),
		now:      time.Now,
	}
}

func (g *MemoryVoteGuard) Allow(ctx context.Context, trackID int64, client string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	key := VoteKey(trackID, client)
	if t, ok := g.until[key]; ok && now.Before(t) {
		return false, nil
	}
	g.until[key] = now.Add(g.cooldown)

	// Drop expired entries so the map stays bounded by active cooldowns.
	if len(g.until) > 1024 {
		for k, t := range g.until {
			if !now.Before(t) {
				delete(g.until, k)
			}
		}
	}
	return true, nil
}

func (g *MemoryVoteGuard) Forget(ctx context.Context, trackID int64, client string) error {
	g.mu.Lock()
	delete(g.until, VoteKey(trackID, client))
	g.mu.Unlock()
	return nil
}
