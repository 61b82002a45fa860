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

//nolint:testpackage // need to test internal types
package tokenization

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPool_ProcessTask(t *testing.T) {
	mockTokenizer := &MockTokenizer{}
	pool := &Pool{
		workers:   1,
		tokenizer: mockTokenizer,
	}

	expectedTokens := TokenSequence{12345, 67890, 11111}
	mockTokenizer.On("Encode", "hello world").Return(expectedTokens, nil)

	results := make([]TokenSequence, 3)
	err := pool.processTask(context.Background(), Task{Index: 2, Text: "hello world"}, results)

	assert.NoError(t, err)
	assert.Equal(t, expectedTokens, results[2])
	assert.Nil(t, results[0])
	mockTokenizer.AssertExpectations(t)
}

func TestPool_EncodeAllKeepsOrder(t *testing.T) {
	texts := make([]string, 200)
	want := make([]TokenSequence, len(texts))
	for i := range texts {
		words := make([]byte, 0, i*2)
		for range i % 7 {
			words = append(words, "ab "...)
		}
		texts[i] = fmt.Sprintf("%s%d", words, i)
		want[i], _ = (&wordTokenizer{}).Encode(texts[i])
	}

	for _, workers := range []int{1, 3, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			pool := NewTokenizationPool(&Config{WorkersCount: workers}, &wordTokenizer{})

			got, err := pool.EncodeAll(context.Background(), texts)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestPool_EncodeAllEmpty(t *testing.T) {
	pool := NewTokenizationPool(nil, &wordTokenizer{})

	got, err := pool.EncodeAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPool_EncodeAllPropagatesErrors(t *testing.T) {
	errBoom := errors.New("boom")
	mockTokenizer := &MockTokenizer{}
	mockTokenizer.On("Encode", "bad").Return(TokenSequence(nil), errBoom)
	mockTokenizer.On("Encode", mock.Anything).Return(TokenSequence{1}, nil).Maybe()

	pool := NewTokenizationPool(&Config{WorkersCount: 2}, mockTokenizer)

	_, err := pool.EncodeAll(context.Background(), []string{"a", "bad", "c", "d"})
	assert.ErrorIs(t, err, errBoom)
}

func TestPool_EncodeAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewTokenizationPool(&Config{WorkersCount: 1}, &wordTokenizer{})

	_, err := pool.EncodeAll(ctx, []string{"a", "b", "c"})
	assert.ErrorIs(t, err, context.Canceled)
}
