package access

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DecisionCache memoizes HasAccess verdicts in Redis with a short TTL. One
// hash per role holds the verdicts for that role's (module, section) pairs so
// a reconciliation can drop a role's entire cache with a single DEL. The
// cache is best effort: every error degrades to a database check. A nil
// *DecisionCache is valid and disables caching.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDecisionCache constructs a cache with the given TTL.
func NewDecisionCache(client *redis.Client, ttl time.Duration) *DecisionCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DecisionCache{client: client, ttl: ttl}
}

func roleKey(roleID int64) string {
	return fmt.Sprintf("access:verdict:role:%d", roleID)
}

func fieldKey(moduleID int64, sectionID *int64) string {
	if sectionID == nil {
		return fmt.Sprintf("m:%d:s:*", moduleID)
	}
	return fmt.Sprintf("m:%d:s:%d", moduleID, *sectionID)
}

// Get returns a cached verdict and whether one was present.
func (c *DecisionCache) Get(ctx context.Context, roleID, moduleID int64, sectionID *int64) (bool, bool) {
	if c == nil {
		return false, false
	}
	val, err := c.client.HGet(ctx, roleKey(roleID), fieldKey(moduleID, sectionID)).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

// Put stores a verdict and refreshes the role hash TTL.
func (c *DecisionCache) Put(ctx context.Context, roleID, moduleID int64, sectionID *int64, verdict bool) {
	if c == nil {
		return
	}
	val := "0"
	if verdict {
		val = "1"
	}
	key := roleKey(roleID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, fieldKey(moduleID, sectionID), val)
	pipe.Expire(ctx, key, c.ttl)
	_, _ = pipe.Exec(ctx)
}

// InvalidateRoles drops every cached verdict of the given roles. Write paths
// call it after a successful commit.
func (c *DecisionCache) InvalidateRoles(ctx context.Context, roleIDs ...int64) error {
	if c == nil || len(roleIDs) == 0 {
		return nil
	}
	keys := make([]string, len(roleIDs))
	for i, id := range roleIDs {
		keys[i] = roleKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}
