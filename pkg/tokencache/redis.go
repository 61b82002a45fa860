/*
Copyright 2025 The llm-d Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tokencache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/llm-d/llm-d-calibration-data/pkg/tokenization"
)

const redisKeyPrefix = "calibration:encoding:"

// RedisStoreConfig holds the configuration for the RedisStore.
type RedisStoreConfig struct {
	Address string `json:"address,omitempty"` // Redis server address
	// TTL expires cached encodings. Zero keeps them until evicted by Redis.
	TTL time.Duration `json:"ttl,omitempty"`
}

// DefaultRedisStoreConfig returns a default configuration for the RedisStore.
func DefaultRedisStoreConfig() *RedisStoreConfig {
	return &RedisStoreConfig{
		Address: "redis://127.0.0.1:6379",
	}
}

// NewRedisStore creates a new RedisStore instance.
func NewRedisStore(config *RedisStoreConfig) (Store, error) {
	if config == nil {
		config = DefaultRedisStoreConfig()
	}

	address := config.Address
	if !strings.HasPrefix(address, "redis://") &&
		!strings.HasPrefix(address, "rediss://") &&
		!strings.HasPrefix(address, "unix://") {
		address = "redis://" + address
	}

	redisOpt, err := redis.ParseURL(address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redisURL: %w", err)
	}

	redisClient := redis.NewClient(redisOpt)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		RedisClient: redisClient,
		ttl:         config.TTL,
	}, nil
}

// RedisStore implements the Store interface using Redis as the backend.
// Encodings are stored msgpack-encoded under one string key each.
type RedisStore struct {
	RedisClient *redis.Client
	ttl         time.Duration
}

var _ Store = &RedisStore{}

func redisKey(key Key) string {
	return redisKeyPrefix + key.String()
}

// Get returns the cached encoding for key, if any.
func (r *RedisStore) Get(ctx context.Context, key Key) (tokenization.TokenSequence, bool, error) {
	payload, err := r.RedisClient.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get encoding from Redis: %w", err)
	}

	var tokens tokenization.TokenSequence
	if err := msgpack.Unmarshal(payload, &tokens); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached encoding: %w", err)
	}
	return tokens, true, nil
}

// Add stores the encoding for key.
func (r *RedisStore) Add(ctx context.Context, key Key, tokens tokenization.TokenSequence) error {
	payload, err := msgpack.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to encode encoding: %w", err)
	}

	if err := r.RedisClient.Set(ctx, redisKey(key), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to add encoding to Redis: %w", err)
	}
	return nil
}
