package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "euterpe:connect-state:"

// RedisRepo implements Repo on Redis so the OAuth callback can be served by
// any instance, not just the one that issued the state.
type RedisRepo struct {
	client redis.UniversalClient
}

var _ Repo = (*RedisRepo)(nil)

func NewRedisRepo(client redis.UniversalClient) *RedisRepo {
	return &RedisRepo{client: client}
}

func (r *RedisRepo) Upsert(ctx context.Context, state string, cs *ConnectState, ttl time.Duration) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if cs == nil {
		return errors.New("connect state cannot be nil")
	}

	payload, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("marshal connect state: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+state, payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist connect state: %w", err)
	}
	return nil
}

func (r *RedisRepo) Consume(ctx context.Context, state string) (*ConnectState, error) {
	if state == "" {
		return nil, errors.New("state cannot be empty")
	}

	// GETDEL makes retrieve-and-invalidate a single round trip, so a replayed
	// state can never be consumed twice.
	raw, err := r.client.GetDel(ctx, redisKeyPrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load connect state: %w", err)
	}

	var cs ConnectState
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, fmt.Errorf("decode connect state: %w", err)
	}
	return &cs, nil
}
