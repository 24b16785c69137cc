package renewal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisStateKey = "autorenew:renewals"

// RedisStore persists renewal state in a redis hash so pending renewals
// survive a process restart; the sweep re-reads them on its next pass.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore returns a redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the state for an account.
func (r *RedisStore) Get(ctx context.Context, account string) (State, bool, error) {
	raw, err := r.client.HGet(ctx, redisStateKey, account).Result()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return State{}, false, err
	}
	return state, true, nil
}

// Put overwrites the state for an account.
func (r *RedisStore) Put(ctx context.Context, account string, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, redisStateKey, account, data).Err()
}

// List returns all entries.
func (r *RedisStore) List(ctx context.Context) (map[string]State, error) {
	raw, err := r.client.HGetAll(ctx, redisStateKey).Result()
	if err != nil {
		return nil, err
	}
	result := make(map[string]State, len(raw))
	for account, value := range raw {
		var state State
		if err := json.Unmarshal([]byte(value), &state); err != nil {
			return nil, err
		}
		result[account] = state
	}
	return result, nil
}
