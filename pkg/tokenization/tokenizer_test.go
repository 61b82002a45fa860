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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordLevelTokenizerJSON is a minimal tokenizer.json without a
// post-processor, so BOS handling is left to HFTokenizer.
const wordLevelTokenizerJSON = `{
  "version": "1.0",
  "truncation": null,
  "padding": null,
  "added_tokens": [
    {"id": 0, "content": "<unk>", "single_word": false, "lstrip": false, "rstrip": false, "normalized": false, "special": true},
    {"id": 1, "content": "<s>", "single_word": false, "lstrip": false, "rstrip": false, "normalized": false, "special": true},
    {"id": 2, "content": "</s>", "single_word": false, "lstrip": false, "rstrip": false, "normalized": false, "special": true}
  ],
  "normalizer": null,
  "pre_tokenizer": {"type": "Whitespace"},
  "post_processor": null,
  "decoder": null,
  "model": {
    "type": "WordLevel",
    "vocab": {"<unk>": 0, "<s>": 1, "</s>": 2, "hello": 3, "world": 4},
    "unk_token": "<unk>"
  }
}`

func TestResolveVariant(t *testing.T) {
	tests := []struct {
		modelID string
		want    Variant
	}{
		{modelID: "meta-llama/Llama-2-7b-hf", want: VariantLlama},
		{modelID: "huggyllama/llama-7b", want: VariantLlama},
		{modelID: "codellama/CodeLlama-7b-hf", want: VariantCode},
		{modelID: "some-org/CODELLAMA-mini", want: VariantCode},
		{modelID: "facebook/opt-125m", want: VariantGeneric},
		{modelID: "", want: VariantGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.modelID, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveVariant(tt.modelID))
		})
	}
}

func TestVariantString(t *testing.T) {
	assert.Equal(t, "generic", VariantGeneric.String())
	assert.Equal(t, "code", VariantCode.String())
	assert.Equal(t, "llama", VariantLlama.String())
}

func newWordLevelTokenizer(t *testing.T, variant Variant, config string) *HFTokenizer {
	t.Helper()

	tokenizer, err := NewHFTokenizer(variant, []byte(wordLevelTokenizerJSON), []byte(config))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tokenizer.Close() })
	return tokenizer
}

func TestHFTokenizer_Encode(t *testing.T) {
	tests := []struct {
		name    string
		variant Variant
		config  string
		want    TokenSequence
	}{
		{
			name:    "generic has no leading bos",
			variant: VariantGeneric,
			want:    TokenSequence{3, 4},
		},
		{
			name:    "llama adds bos by default",
			variant: VariantLlama,
			want:    TokenSequence{1, 3, 4},
		},
		{
			name:    "config disables bos",
			variant: VariantLlama,
			config:  `{"add_bos_token": false}`,
			want:    TokenSequence{3, 4},
		},
		{
			name:    "config enables bos",
			variant: VariantGeneric,
			config:  `{"add_bos_token": true, "bos_token": {"content": "<s>"}}`,
			want:    TokenSequence{1, 3, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenizer := newWordLevelTokenizer(t, tt.variant, tt.config)

			got, err := tokenizer.Encode("hello world")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHFTokenizer_SpecialIDs(t *testing.T) {
	tokenizer := newWordLevelTokenizer(t, VariantLlama, "")

	assert.Equal(t, SpecialIDs{BOS: 1, EOS: 2}, tokenizer.SpecialIDs())
	assert.Equal(t, VariantLlama, tokenizer.Variant())

	assert.False(t, tokenizer.TrySetSpecialIDs(SpecialIDs{BOS: 1, EOS: 5}), "id outside the vocabulary")
	assert.False(t, tokenizer.TrySetSpecialIDs(SpecialIDs{BOS: -1, EOS: 2}))
	assert.Equal(t, SpecialIDs{BOS: 1, EOS: 2}, tokenizer.SpecialIDs())

	require.True(t, tokenizer.TrySetSpecialIDs(SpecialIDs{BOS: 4, EOS: 3}))
	assert.Equal(t, SpecialIDs{BOS: 4, EOS: 3}, tokenizer.SpecialIDs())

	got, err := tokenizer.Encode("hello world")
	require.NoError(t, err)
	assert.Equal(t, TokenSequence{4, 3, 4}, got)
}

func TestNewHFTokenizer_InvalidJSON(t *testing.T) {
	_, err := NewHFTokenizer(VariantGeneric, []byte("not json"), nil)
	assert.Error(t, err)
}

func TestHFTokenizer_EncodeAfterClose(t *testing.T) {
	tokenizer := newWordLevelTokenizer(t, VariantGeneric, "")

	require.NoError(t, tokenizer.Close())
	require.NoError(t, tokenizer.Close(), "closing twice is a no-op")

	_, err := tokenizer.Encode("hello world")
	assert.ErrorIs(t, err, ErrTokenizerClosed)
}
