package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"oft-bridge.backend/internal/domain/entities"
	domainerrors "oft-bridge.backend/internal/domain/errors"
)

func newStatusCache(t *testing.T) (*RedisStatusCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStatusCache(client, time.Hour), mr
}

func TestRedisStatusCache_SaveNeverRegresses(t *testing.T) {
	cache, _ := newStatusCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "0xABC")
	require.True(t, errors.Is(err, domainerrors.ErrNotFound))

	got, err := cache.Save(ctx, entities.TransferStatus{TxHash: "0xabc", Stage: entities.StageVerified, Source: "onchain"})
	require.NoError(t, err)
	require.Equal(t, entities.StageCommitted, got.Stage)

	got, err = cache.Save(ctx, entities.TransferStatus{TxHash: "0xabc", Stage: entities.StageSent, Source: "aggregator"})
	require.NoError(t, err)
	require.Equal(t, entities.StageCommitted, got.Stage)
	require.Equal(t, "onchain", got.Source)

	got, err = cache.Save(ctx, entities.TransferStatus{TxHash: "0xABC", Stage: entities.StageExecuted, Source: "scanner"})
	require.NoError(t, err)
	require.Equal(t, entities.StageExecuted, got.Stage)

	stored, err := cache.Get(ctx, "0xabc")
	require.NoError(t, err)
	require.Equal(t, entities.StageExecuted, stored.Stage)
	require.Equal(t, "scanner", stored.Source)
}

func TestRedisStatusCache_TTL(t *testing.T) {
	cache, mr := newStatusCache(t)
	ctx := context.Background()

	_, err := cache.Save(ctx, entities.TransferStatus{TxHash: "0x1", Stage: entities.StageSent})
	require.NoError(t, err)
	require.Equal(t, time.Hour, mr.TTL(statusKey("0x1")))

	mr.FastForward(2 * time.Hour)
	_, err = cache.Get(ctx, "0x1")
	require.True(t, errors.Is(err, domainerrors.ErrNotFound))
}

func TestRedisStatusCache_ConcurrentWritersKeepHighestRank(t *testing.T) {
	cache, _ := newStatusCache(t)
	ctx := context.Background()
	stages := []entities.Stage{entities.StageSent, entities.StageExecuted, entities.StageDVNVerifying, entities.StageCommitted}

	var wg sync.WaitGroup
	for _, s := range stages {
		wg.Add(1)
		go func(stage entities.Stage) {
			defer wg.Done()
			_, _ = cache.Save(ctx, entities.TransferStatus{TxHash: "0xfeed", Stage: stage})
		}(s)
	}
	wg.Wait()

	stored, err := cache.Get(ctx, "0xfeed")
	require.NoError(t, err)
	require.Equal(t, entities.StageExecuted, stored.Stage)
}

func TestRedisStatusCache_CorruptValueIsReplaced(t *testing.T) {
	cache, mr := newStatusCache(t)
	ctx := context.Background()
	require.NoError(t, mr.Set(statusKey("0x2"), "not-json"))

	_, err := cache.Get(ctx, "0x2")
	require.Error(t, err)

	got, err := cache.Save(ctx, entities.TransferStatus{TxHash: "0x2", Stage: entities.StageSent})
	require.NoError(t, err)
	require.Equal(t, entities.StageSent, got.Stage)
}
