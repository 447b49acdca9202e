package invalidation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	keyPrefix      = "ledger:"
	publishTimeout = 2 * time.Second
)

// RedisInvalidator bumps a per-owner version counter for every scope in the
// event and publishes the event on the owner's channel, so read caches in
// other processes can drop stale views.
type RedisInvalidator struct {
	client redis.UniversalClient
	log    zerolog.Logger
}

func NewRedisInvalidator(client redis.UniversalClient, log zerolog.Logger) *RedisInvalidator {
	return &RedisInvalidator{client: client, log: log}
}

func (r *RedisInvalidator) Invalidate(ownerID string, event Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := r.Publish(ctx, ownerID, event); err != nil {
			r.log.Warn().Err(err).Str("owner_id", ownerID).Msg("invalidation publish failed")
		}
	}()
}

// Publish runs the version bumps and the publish in one MULTI block.
func (r *RedisInvalidator) Publish(ctx context.Context, ownerID string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pipe := r.client.TxPipeline()
	for _, scope := range event.Scopes {
		pipe.Incr(ctx, VersionKey(ownerID, scope))
	}
	pipe.Publish(ctx, Channel(ownerID), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis exec: %w", err)
	}
	return nil
}

func VersionKey(ownerID string, scope Scope) string {
	return keyPrefix + ownerID + ":version:" + string(scope)
}

func Channel(ownerID string) string {
	return keyPrefix + ownerID + ":invalidate"
}
