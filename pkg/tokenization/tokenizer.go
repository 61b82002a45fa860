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

package tokenization

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/daulet/tokenizers"
)

// TokenSequence is an ordered sequence of vocabulary ids. Ids are
// non-negative; the type is signed so masked targets can share it.
// A TokenSequence returned by a Tokenizer must not be mutated.
type TokenSequence []int64

// SpecialIDs holds the beginning- and end-of-sequence token ids.
// An id of -1 means the tokenizer does not define the token.
type SpecialIDs struct {
	BOS int64 `json:"bos"`
	EOS int64 `json:"eos"`
}

// Variant is the closed set of tokenizer flavours selected from a model
// identifier.
type Variant int

const (
	// VariantGeneric is used for any model that is not llama-family.
	VariantGeneric Variant = iota
	// VariantCode is the code-oriented llama variant (codellama).
	VariantCode
	// VariantLlama is the general-purpose llama variant.
	VariantLlama
)

// String returns the name of the variant.
func (v Variant) String() string {
	switch v {
	case VariantCode:
		return "code"
	case VariantLlama:
		return "llama"
	default:
		return "generic"
	}
}

// patchesSpecialIDs reports whether BOS/EOS are forced to the llama ids.
func (v Variant) patchesSpecialIDs() bool {
	return v == VariantCode || v == VariantLlama
}

// ResolveVariant selects the tokenizer variant for a model identifier.
// Matching is case-insensitive and "codellama" takes precedence over "llama".
func ResolveVariant(modelID string) Variant {
	lowered := strings.ToLower(modelID)
	switch {
	case strings.Contains(lowered, "codellama"):
		return VariantCode
	case strings.Contains(lowered, "llama"):
		return VariantLlama
	default:
		return VariantGeneric
	}
}

// Tokenizer is the capability interface every tokenizer variant exposes.
type Tokenizer interface {
	// Encode tokenizes text, adding the special tokens the model expects.
	Encode(text string) (TokenSequence, error)
	// SpecialIDs returns the current BOS/EOS ids.
	SpecialIDs() SpecialIDs
	// TrySetSpecialIDs overrides the BOS/EOS ids. It returns false and leaves
	// the tokenizer untouched when the backend cannot take the new ids.
	TrySetSpecialIDs(ids SpecialIDs) bool
	// Variant returns the variant the tokenizer was built as.
	Variant() Variant
}

// HFTokenizer implements the Tokenizer interface using bindings to
// HuggingFace's rust tokenizer. It is safe for concurrent use.
type HFTokenizer struct {
	variant   Variant
	tokenizer *tokenizers.Tokenizer
	vocabSize int64

	// addBOS forces a leading BOS when the post-processor does not emit one.
	addBOS bool

	mu       sync.RWMutex
	original SpecialIDs // ids the backend emits
	special  SpecialIDs // ids reported and written into encodings
	closed   bool
}

// ErrTokenizerClosed is returned when encoding with a closed tokenizer.
var ErrTokenizerClosed = errors.New("tokenizer is closed")

var _ Tokenizer = &HFTokenizer{}

// NewHFTokenizer builds a tokenizer from the content of tokenizer.json and
// (optionally) tokenizer_config.json.
func NewHFTokenizer(variant Variant, tokenizerJSON, tokenizerConfigJSON []byte) (*HFTokenizer, error) {
	meta, err := parseSpecialTokens(tokenizerJSON, tokenizerConfigJSON)
	if err != nil {
		return nil, err
	}

	tk, err := tokenizers.FromBytes(tokenizerJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	addBOS := variant == VariantLlama
	if meta.addBOS != nil {
		addBOS = *meta.addBOS
	}

	return &HFTokenizer{
		variant:   variant,
		tokenizer: tk,
		vocabSize: int64(tk.VocabSize()),
		addBOS:    addBOS && meta.ids.BOS >= 0,
		original:  meta.ids,
		special:   meta.ids,
	}, nil
}

// Encode converts a string into token IDs.
func (t *HFTokenizer) Encode(text string) (TokenSequence, error) {
	// held across the native call so Close waits for in-flight encodes
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return nil, ErrTokenizerClosed
	}
	ids, _ := t.tokenizer.Encode(text, true)
	original, special := t.original, t.special
	t.mu.RUnlock()

	addLeading := t.addBOS && (len(ids) == 0 || int64(ids[0]) != original.BOS)
	out := make(TokenSequence, 0, len(ids)+1)
	if addLeading {
		out = append(out, special.BOS)
	}
	for _, id := range ids {
		out = append(out, int64(id))
	}

	// remap special tokens emitted by the post-processor
	if len(out) > 0 && !addLeading && out[0] == original.BOS {
		out[0] = special.BOS
	}
	if last := len(out) - 1; last > 0 && out[last] == original.EOS {
		out[last] = special.EOS
	}

	return out, nil
}

// SpecialIDs returns the current BOS/EOS ids.
func (t *HFTokenizer) SpecialIDs() SpecialIDs {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.special
}

// TrySetSpecialIDs overrides the BOS/EOS ids when both fit the vocabulary.
func (t *HFTokenizer) TrySetSpecialIDs(ids SpecialIDs) bool {
	if ids.BOS < 0 || ids.EOS < 0 || ids.BOS >= t.vocabSize || ids.EOS >= t.vocabSize {
		return false
	}

	t.mu.Lock()
	t.special = ids
	t.mu.Unlock()
	return true
}

// Variant returns the variant the tokenizer was built as.
func (t *HFTokenizer) Variant() Variant {
	return t.variant
}

// Close releases the native tokenizer. Later calls to Encode fail with
// ErrTokenizerClosed.
func (t *HFTokenizer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.tokenizer.Close()
}
