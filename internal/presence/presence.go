// Package presence tracks which users currently hold a live connection,
// backed by Redis keys with a TTL so a crashed client simply ages out.
package presence

import (
	"context"
	"fmt"
	"time"

	"caretalk/internal/utils"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "presence:"

// DefaultTTL is how long a heartbeat keeps a user online. Connected
// clients refresh it on every pong.
const DefaultTTL = 90 * time.Second

type Tracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTracker(addr, password string, db int, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

// Heartbeat marks the user online for the tracker's TTL.
func (t *Tracker) Heartbeat(ctx context.Context, userID string) error {
	if err := t.client.Set(ctx, keyPrefix+userID, "1", t.ttl).Err(); err != nil {
		return utils.NewConnectivityError("presenceHeartbeat", err)
	}
	return nil
}

// Offline removes the user's presence key immediately, for clean
// disconnects that should not wait out the TTL.
func (t *Tracker) Offline(ctx context.Context, userID string) error {
	if err := t.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return utils.NewConnectivityError("presenceOffline", err)
	}
	return nil
}

// Online reports whether the user has a live heartbeat.
func (t *Tracker) Online(ctx context.Context, userID string) (bool, error) {
	n, err := t.client.Exists(ctx, keyPrefix+userID).Result()
	if err != nil {
		return false, utils.NewConnectivityError("presenceLookup", err)
	}
	return n > 0, nil
}

// OnlineSet reports presence for several users in one round trip.
func (t *Tracker) OnlineSet(ctx context.Context, userIDs []string) (map[string]bool, error) {
	if len(userIDs) == 0 {
		return map[string]bool{}, nil
	}

	pipe := t.client.Pipeline()
	cmds := make(map[string]*redis.IntCmd, len(userIDs))
	for _, id := range userIDs {
		cmds[id] = pipe.Exists(ctx, keyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, utils.NewConnectivityError("presenceLookup", err)
	}

	online := make(map[string]bool, len(userIDs))
	for id, cmd := range cmds {
		online[id] = cmd.Val() > 0
	}
	return online, nil
}

func (t *Tracker) Close() error {
	if err := t.client.Close(); err != nil {
		return fmt.Errorf("failed to close presence tracker: %v", err)
	}
	return nil
}
