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
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"

	"github.com/llm-d/llm-d-calibration-data/pkg/metrics"
	"github.com/llm-d/llm-d-calibration-data/pkg/tokenization"
)

// Config holds the configuration for the encoding cache.
// It may configure several backends such as listed within the struct.
// If multiple backends are configured, only the first one will be used.
type Config struct {
	// InMemoryConfig holds the configuration for the in-memory store.
	InMemoryConfig *InMemoryStoreConfig `json:"inMemoryConfig"`
	// CostAwareMemoryConfig holds the configuration for the cost-aware memory store.
	CostAwareMemoryConfig *CostAwareMemoryStoreConfig `json:"costAwareMemoryConfig"`
	// RedisConfig holds the configuration for the Redis store.
	RedisConfig *RedisStoreConfig `json:"redisConfig"`

	// EnableMetrics toggles whether admissions/hits/misses are recorded.
	EnableMetrics bool `json:"enableMetrics"`
	// MetricsLoggingInterval defines the interval at which metrics are logged.
	// If zero, metrics logging is disabled.
	// Requires `EnableMetrics` to be true.
	MetricsLoggingInterval time.Duration `json:"metricsLoggingInterval"`
}

// DefaultConfig returns a default configuration for the encoding cache.
func DefaultConfig() *Config {
	return &Config{
		InMemoryConfig: DefaultInMemoryStoreConfig(),
		EnableMetrics:  false,
	}
}

// NewStore creates a new Store instance.
func NewStore(ctx context.Context, cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var store Store
	var err error

	switch {
	case cfg.InMemoryConfig != nil:
		store, err = NewInMemoryStore(cfg.InMemoryConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
	case cfg.CostAwareMemoryConfig != nil:
		store, err = NewCostAwareMemoryStore(cfg.CostAwareMemoryConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create cost-aware memory store: %w", err)
		}
	case cfg.RedisConfig != nil:
		//nolint:contextcheck // connection check uses its own context
		store, err = NewRedisStore(cfg.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}
	default:
		return nil, fmt.Errorf("no valid cache configuration provided")
	}

	// wrap in metrics only if enabled
	if cfg.EnableMetrics {
		store = NewInstrumentedStore(store)
		metrics.Register()
		if cfg.MetricsLoggingInterval > 0 {
			// this is non-blocking
			metrics.StartMetricsLogging(ctx, cfg.MetricsLoggingInterval)
		}
	}

	return store, nil
}

// Store caches the tokenization of whole corpus splits, so that repeated
// loader calls for the same model and corpus skip re-encoding.
//
// Cached sequences are shared: callers must not mutate them.
// Store operations are thread-safe and can be performed concurrently.
type Store interface {
	// Get returns the cached encoding for key, if any.
	Get(ctx context.Context, key Key) (tokenization.TokenSequence, bool, error)
	// Add stores the encoding for key.
	Add(ctx context.Context, key Key, tokens tokenization.TokenSequence) error
}

// Key identifies the encoding of one text under one tokenizer.
type Key struct {
	Model  string
	Corpus string
	Split  string
	// Digest covers the fields above and the encoded text.
	Digest uint64
}

// NewKey builds the Key for text. The digest is the xxhash of the canonical
// CBOR encoding of the key fields and the text hash, so it is stable across
// processes.
func NewKey(model, corpus, split, text string) (Key, error) {
	encMode, err := cbor.CanonicalEncOptions().EncMode() // deterministic
	if err != nil {
		return Key{}, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}

	payload := []interface{}{model, corpus, split, uint64(len(text)), xxhash.Sum64String(text)}
	b, err := encMode.Marshal(payload)
	if err != nil {
		return Key{}, fmt.Errorf("failed to marshal key payload to CBOR: %w", err)
	}

	return Key{
		Model:  model,
		Corpus: corpus,
		Split:  split,
		Digest: xxhash.Sum64(b),
	}, nil
}

// String returns a string representation of the Key.
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s@%016x", k.Model, k.Corpus, k.Split, k.Digest)
}
