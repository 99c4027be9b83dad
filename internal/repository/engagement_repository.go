package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EngagementRepository tracks view counts and watcher sets in Redis. All
// counters are advisory; callers degrade to zero when Redis is unavailable.
type EngagementRepository struct {
	client *redis.Client
}

// NewEngagementRepository constructs the repository.
func NewEngagementRepository(client *redis.Client) *EngagementRepository {
	return &EngagementRepository{client: client}
}

func viewCountKey(opportunityID string) string {
	return fmt.Sprintf("opportunity:%s:views", opportunityID)
}

func viewDedupKey(opportunityID, viewerID string) string {
	return fmt.Sprintf("opportunity:%s:viewed:%s", opportunityID, viewerID)
}

func watchersKey(opportunityID string) string {
	return fmt.Sprintf("opportunity:%s:watchers", opportunityID)
}

// RecordView increments the view counter unless the viewer already counted
// within the dedup window.
func (r *EngagementRepository) RecordView(ctx context.Context, opportunityID, viewerID string, dedupTTL time.Duration) error {
	if viewerID != "" && dedupTTL > 0 {
		set, err := r.client.SetNX(ctx, viewDedupKey(opportunityID, viewerID), 1, dedupTTL).Result()
		if err != nil {
			return fmt.Errorf("dedup view: %w", err)
		}
		if !set {
			return nil
		}
	}
	if err := r.client.Incr(ctx, viewCountKey(opportunityID)).Err(); err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	return nil
}

// ViewCount returns the recorded view count.
func (r *EngagementRepository) ViewCount(ctx context.Context, opportunityID string) (int64, error) {
	count, err := r.client.Get(ctx, viewCountKey(opportunityID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get view count: %w", err)
	}
	return count, nil
}

// Watch adds the user to the opportunity's watcher set.
func (r *EngagementRepository) Watch(ctx context.Context, opportunityID, userID string) error {
	if err := r.client.SAdd(ctx, watchersKey(opportunityID), userID).Err(); err != nil {
		return fmt.Errorf("add watcher: %w", err)
	}
	return nil
}

// Unwatch removes the user from the watcher set.
func (r *EngagementRepository) Unwatch(ctx context.Context, opportunityID, userID string) error {
	if err := r.client.SRem(ctx, watchersKey(opportunityID), userID).Err(); err != nil {
		return fmt.Errorf("remove watcher: %w", err)
	}
	return nil
}

// IsWatching reports set membership.
func (r *EngagementRepository) IsWatching(ctx context.Context, opportunityID, userID string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, watchersKey(opportunityID), userID).Result()
	if err != nil {
		return false, fmt.Errorf("check watcher: %w", err)
	}
	return ok, nil
}

// WatcherCount returns the watcher set cardinality.
func (r *EngagementRepository) WatcherCount(ctx context.Context, opportunityID string) (int64, error) {
	count, err := r.client.SCard(ctx, watchersKey(opportunityID)).Result()
	if err != nil {
		return 0, fmt.Errorf("count watchers: %w", err)
	}
	return count, nil
}

// Watchers returns the watcher user IDs, for notification fan-out.
func (r *EngagementRepository) Watchers(ctx context.Context, opportunityID string) ([]string, error) {
	members, err := r.client.SMembers(ctx, watchersKey(opportunityID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list watchers: %w", err)
	}
	return members, nil
}
