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
	"strings"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"
)

// MockTokenizer implements the Tokenizer interface for testing.
type MockTokenizer struct {
	mock.Mock
}

func (m *MockTokenizer) Encode(text string) (TokenSequence, error) {
	args := m.Called(text)
	return args.Get(0).(TokenSequence), args.Error(1) //nolint:errcheck // return mocked values
}

func (m *MockTokenizer) SpecialIDs() SpecialIDs {
	args := m.Called()
	return args.Get(0).(SpecialIDs) //nolint:errcheck // return mocked values
}

func (m *MockTokenizer) TrySetSpecialIDs(ids SpecialIDs) bool {
	args := m.Called(ids)
	return args.Bool(0)
}

func (m *MockTokenizer) Variant() Variant {
	args := m.Called()
	return args.Get(0).(Variant) //nolint:errcheck // return mocked values
}

// wordTokenizer maps each whitespace-separated word to its length.
type wordTokenizer struct {
	mu      sync.Mutex
	special SpecialIDs
	variant Variant
}

func (w *wordTokenizer) Encode(text string) (TokenSequence, error) {
	words := strings.Fields(text)
	out := make(TokenSequence, 0, len(words))
	for _, word := range words {
		out = append(out, int64(len(word)))
	}
	return out, nil
}

func (w *wordTokenizer) SpecialIDs() SpecialIDs {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.special
}

func (w *wordTokenizer) TrySetSpecialIDs(ids SpecialIDs) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.special = ids
	return true
}

func (w *wordTokenizer) Variant() Variant {
	return w.variant
}

// closingTokenizer is a wordTokenizer that records Close calls.
type closingTokenizer struct {
	wordTokenizer
	closed atomic.Int32
}

func (c *closingTokenizer) Close() error {
	c.closed.Add(1)
	return nil
}
