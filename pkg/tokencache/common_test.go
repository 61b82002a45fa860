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

package tokencache_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-d/llm-d-calibration-data/pkg/tokencache"
	"github.com/llm-d/llm-d-calibration-data/pkg/tokenization"
)

func mustKey(t *testing.T, model, corpus, split, text string) tokencache.Key {
	t.Helper()
	key, err := tokencache.NewKey(model, corpus, split, text)
	require.NoError(t, err)
	return key
}

// testCommonStoreBehavior runs a test suite for any Store implementation.
// storeFactory should return a fresh store for each sub-test.
func testCommonStoreBehavior(t *testing.T, storeFactory func(t *testing.T) tokencache.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("BasicAddAndGet", func(t *testing.T) {
		testBasicAddAndGet(t, ctx, storeFactory(t))
	})

	t.Run("MissingKey", func(t *testing.T) {
		testMissingKey(t, ctx, storeFactory(t))
	})

	t.Run("Overwrite", func(t *testing.T) {
		testOverwrite(t, ctx, storeFactory(t))
	})

	t.Run("ConcurrentOperations", func(t *testing.T) {
		testConcurrentOperations(t, ctx, storeFactory(t))
	})
}

func testBasicAddAndGet(t *testing.T, ctx context.Context, store tokencache.Store) {
	t.Helper()
	key := mustKey(t, "meta-llama/Llama-2-7b-hf", "wikitext2", "train", "hello world")
	tokens := tokenization.TokenSequence{1, 22172, 3186}

	require.NoError(t, store.Add(ctx, key, tokens))

	got, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, tokens, got)
}

func testMissingKey(t *testing.T, ctx context.Context, store tokencache.Store) {
	t.Helper()
	key := mustKey(t, "model", "ptb", "test", "never stored")

	got, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, got)
}

func testOverwrite(t *testing.T, ctx context.Context, store tokencache.Store) {
	t.Helper()
	key := mustKey(t, "model", "c4", "validation", "text")

	require.NoError(t, store.Add(ctx, key, tokenization.TokenSequence{1, 2}))
	require.NoError(t, store.Add(ctx, key, tokenization.TokenSequence{1, 2, 3}))

	got, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, tokenization.TokenSequence{1, 2, 3}, got)
}

func testConcurrentOperations(t *testing.T, ctx context.Context, store tokencache.Store) {
	t.Helper()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := mustKey(t, "model", "code", "test", fmt.Sprintf("record-%d", i))
			tokens := tokenization.TokenSequence{1, int64(i)}
			assert.NoError(t, store.Add(ctx, key, tokens))

			got, found, err := store.Get(ctx, key)
			assert.NoError(t, err)
			if assert.True(t, found) {
				assert.Equal(t, tokens, got)
			}
		}(i)
	}
	wg.Wait()
}
