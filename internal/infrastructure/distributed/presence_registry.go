package distributed

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"supermock/internal/core/domain"
)

// A user may hold several connections to the same room on one or more
// instances. The room hash counts them per user and the instance hash counts
// this instance's share per membership.
var leaveScript = redis.NewScript(`
	local by = tonumber(ARGV[2])
	local n = redis.call("hincrby", KEYS[1], ARGV[1], -by)
	if n <= 0 then
		redis.call("hdel", KEYS[1], ARGV[1])
	end
	if KEYS[2] then
		local m = redis.call("hincrby", KEYS[2], ARGV[3], -by)
		if m <= 0 then
			redis.call("hdel", KEYS[2], ARGV[3])
		end
	end
	return n
`)

// PresenceRegistry tracks session room membership shared by every instance.
type PresenceRegistry struct {
	client     redis.UniversalClient
	instanceID string
	prefix     string
	ttl        time.Duration
	logger     *zap.SugaredLogger
}

func NewPresenceRegistry(client redis.UniversalClient, instanceID string, ttl time.Duration, logger *zap.SugaredLogger) *PresenceRegistry {
	return &PresenceRegistry{
		client:     client,
		instanceID: instanceID,
		prefix:     "supermock:room:",
		ttl:        ttl,
		logger:     logger,
	}
}

func (r *PresenceRegistry) Join(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) error {
	roomKey := r.roomKey(sessionID)
	instanceKey := r.instanceKey()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, roomKey, string(userID), 1)
		pipe.Expire(ctx, roomKey, r.ttl)
		pipe.HIncrBy(ctx, instanceKey, membership(sessionID, userID), 1)
		pipe.Expire(ctx, instanceKey, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to join room %s: %w", sessionID, err)
	}
	return nil
}

func (r *PresenceRegistry) Leave(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) error {
	keys := []string{r.roomKey(sessionID), r.instanceKey()}
	if err := leaveScript.Run(ctx, r.client, keys, string(userID), 1, membership(sessionID, userID)).Err(); err != nil {
		return fmt.Errorf("failed to leave room %s: %w", sessionID, err)
	}
	return nil
}

// Members returns every user present in the room on any instance, sorted.
func (r *PresenceRegistry) Members(ctx context.Context, sessionID domain.SessionID) ([]domain.UserID, error) {
	ids, err := r.client.HKeys(ctx, r.roomKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list room %s: %w", sessionID, err)
	}
	sort.Strings(ids)

	members := make([]domain.UserID, len(ids))
	for i, id := range ids {
		members[i] = domain.UserID(id)
	}
	return members, nil
}

// CleanupInstance drops every connection this instance registered. Called on
// shutdown.
func (r *PresenceRegistry) CleanupInstance(ctx context.Context) error {
	entries, err := r.client.HGetAll(ctx, r.instanceKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to list instance memberships: %w", err)
	}
	for e, raw := range entries {
		sessionID, userID, ok := splitMembership(e)
		if !ok {
			continue
		}
		count, err := strconv.Atoi(raw)
		if err != nil || count <= 0 {
			continue
		}
		if err := leaveScript.Run(ctx, r.client, []string{r.roomKey(sessionID)}, string(userID), count).Err(); err != nil {
			r.logger.Warnw("failed to clean up membership",
				"session_id", sessionID,
				"user_id", userID,
				"error", err,
			)
		}
	}
	return r.client.Del(ctx, r.instanceKey()).Err()
}

func (r *PresenceRegistry) roomKey(sessionID domain.SessionID) string {
	return r.prefix + string(sessionID) + ":members"
}

func (r *PresenceRegistry) instanceKey() string {
	return fmt.Sprintf("supermock:instance:%s:rooms", r.instanceID)
}

func membership(sessionID domain.SessionID, userID domain.UserID) string {
	return string(sessionID) + "|" + string(userID)
}

func splitMembership(s string) (domain.SessionID, domain.UserID, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '|' {
			return domain.SessionID(s[:i]), domain.UserID(s[i+1:]), true
		}
	}
	return "", "", false
}
