package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
)

const (
	statusKeyPrefix    = "transfer:status:"
	statusSaveAttempts = 5
)

// RedisStatusCache stores published statuses as JSON with a TTL. Save runs
// the rank merge inside a WATCH transaction so concurrent writers never
// regress a stored stage.
type RedisStatusCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisStatusCache creates a new status cache
func NewRedisStatusCache(client *goredis.Client, ttl time.Duration) *RedisStatusCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStatusCache{client: client, ttl: ttl}
}

func statusKey(txHash string) string {
	return statusKeyPrefix + strings.ToLower(strings.TrimSpace(txHash))
}

// Get returns domainerrors.ErrNotFound when nothing was published for txHash.
func (c *RedisStatusCache) Get(ctx context.Context, txHash string) (*entities.TransferStatus, error) {
	raw, err := c.client.Get(ctx, statusKey(txHash)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domainerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var status entities.TransferStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decode cached status: %w", err)
	}
	return &status, nil
}

// Save merges status into the stored value and refreshes the TTL.
func (c *RedisStatusCache) Save(ctx context.Context, status entities.TransferStatus) (entities.TransferStatus, error) {
	key := statusKey(status.TxHash)
	var merged entities.TransferStatus

	txf := func(tx *goredis.Tx) error {
		merged = status
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			var prev entities.TransferStatus
			if err := json.Unmarshal(raw, &prev); err == nil {
				merged = entities.MergeStatus(prev, status)
			}
		}
		merged.Stage = merged.Stage.Normalize()

		payload, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, payload, c.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < statusSaveAttempts; i++ {
		err := c.client.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return entities.TransferStatus{}, err
		}
		return merged, nil
	}
	return entities.TransferStatus{}, fmt.Errorf("status cache: too much contention on %s", key)
}
