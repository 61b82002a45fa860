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

package calibration_test

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/llm-d/llm-d-calibration-data/pkg/corpus"
	"github.com/llm-d/llm-d-calibration-data/pkg/tokenization"
)

// numberTokenizer encodes each whitespace-separated decimal number as its
// value. Any other word encodes as 0.
// It records every text it is asked to encode.
type numberTokenizer struct {
	calls atomic.Int32

	mu    sync.Mutex
	texts []string
}

func (n *numberTokenizer) Encode(text string) (tokenization.TokenSequence, error) {
	n.calls.Add(1)
	n.mu.Lock()
	n.texts = append(n.texts, text)
	n.mu.Unlock()

	words := strings.Fields(text)
	tokens := make(tokenization.TokenSequence, len(words))
	for i, word := range words {
		tokens[i], _ = strconv.ParseInt(word, 10, 64)
	}
	return tokens, nil
}

// encoded returns the texts passed to Encode, in call order.
func (n *numberTokenizer) encoded() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.texts)
}

func (n *numberTokenizer) SpecialIDs() tokenization.SpecialIDs {
	return tokenization.SpecialIDs{BOS: -1, EOS: -1}
}

func (n *numberTokenizer) TrySetSpecialIDs(tokenization.SpecialIDs) bool {
	return false
}

func (n *numberTokenizer) Variant() tokenization.Variant {
	return tokenization.VariantGeneric
}

type fakeResolver struct {
	tokenizer tokenization.Tokenizer
	calls     atomic.Int32
}

func (r *fakeResolver) Resolve(context.Context, string) (tokenization.Tokenizer, error) {
	r.calls.Add(1)
	return r.tokenizer, nil
}

// fakeFetcher serves tables by source name.
type fakeFetcher struct {
	mu      sync.Mutex
	tables  map[string]*corpus.Table
	fetched []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{tables: make(map[string]*corpus.Table)}
}

func (f *fakeFetcher) with(src corpus.Source, columns map[string][]string) *fakeFetcher {
	table, err := corpus.NewTable(columns)
	if err != nil {
		panic(err)
	}
	f.tables[src.Name] = table
	return f
}

func (f *fakeFetcher) Fetch(_ context.Context, src corpus.Source) (*corpus.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetched = append(f.fetched, src.Name)
	table, ok := f.tables[src.Name]
	if !ok {
		return nil, fmt.Errorf("no table for %s", src.Name)
	}
	return table, nil
}

// numbers returns the space-joined decimal numbers in [from, to).
func numbers(from, to int) string {
	words := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		words = append(words, strconv.Itoa(i))
	}
	return strings.Join(words, " ")
}

// seqRange returns the token sequence [from, to).
func seqRange(from, to int) tokenization.TokenSequence {
	tokens := make(tokenization.TokenSequence, 0, to-from)
	for i := from; i < to; i++ {
		tokens = append(tokens, int64(i))
	}
	return tokens
}
