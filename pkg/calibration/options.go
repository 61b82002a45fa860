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

package calibration

import (
	"fmt"

	"github.com/llm-d/llm-d-calibration-data/pkg/hub"
	"github.com/llm-d/llm-d-calibration-data/pkg/tokencache"
	"github.com/llm-d/llm-d-calibration-data/pkg/tokenization"
)

// Code corpora selectable for the "code" dispatch key.
const (
	// CodeCorpusHumanEval windows the HumanEval prompts.
	CodeCorpusHumanEval = "humaneval"
	// CodeCorpusCodeParrot windows per-record encodings of a 0.1% slice of
	// the deduplicated CodeParrot corpus.
	CodeCorpusCodeParrot = "codeparrot"
)

const (
	defaultNSamples = 128
	defaultSeqLen   = 2048

	// c4EvalRecords is how many validation records form the c4 eval stream.
	c4EvalRecords = 1100
	// c4EvalTokensPerSeqLen bounds the c4 eval stream to this many windows.
	c4EvalTokensPerSeqLen = 256
	// codeMaxTokens truncates the HumanEval prompt and solution encodings.
	codeMaxTokens = 4096
)

// Options are the arguments of one GetLoaders call.
type Options struct {
	// Name selects the corpus by substring: wikitext2, ptb, c4 or code.
	Name string `json:"name" yaml:"name"`
	// NSamples is the number of windows to draw.
	NSamples int `json:"nsamples" yaml:"nsamples"`
	// Seed seeds every draw of the call.
	Seed int64 `json:"seed" yaml:"seed"`
	// SeqLen is the window length in tokens.
	SeqLen int `json:"seqlen" yaml:"seqlen"`
	// Model is the hub model id whose tokenizer is used.
	Model string `json:"model" yaml:"model"`
	// CodeCorpus picks the corpus behind "code": humaneval (default) or codeparrot.
	CodeCorpus string `json:"codeCorpus,omitempty" yaml:"codeCorpus,omitempty"`
}

// DefaultOptions returns the default loader arguments.
func DefaultOptions() Options {
	return Options{
		NSamples:   defaultNSamples,
		Seed:       0,
		SeqLen:     defaultSeqLen,
		CodeCorpus: CodeCorpusHumanEval,
	}
}

// Validate checks the numeric arguments and the code corpus.
func (o Options) Validate() error {
	switch {
	case o.NSamples < 0:
		return fmt.Errorf("%w: nsamples %d is negative", ErrInvalidArgument, o.NSamples)
	case o.SeqLen <= 0:
		return fmt.Errorf("%w: seqlen %d must be positive", ErrInvalidArgument, o.SeqLen)
	}

	switch o.CodeCorpus {
	case "", CodeCorpusHumanEval, CodeCorpusCodeParrot:
		return nil
	default:
		return fmt.Errorf("%w: unknown code corpus %q", ErrInvalidArgument, o.CodeCorpus)
	}
}

// Config holds the configuration for the Loader module.
type Config struct {
	HubConfig          *hub.Config          `json:"hubConfig"`
	TokenizationConfig *tokenization.Config `json:"tokenizationConfig"`
	// CacheConfig configures the encoding cache. Nil disables caching.
	CacheConfig *tokencache.Config `json:"cacheConfig"`
	// MaxRecordAttempts bounds the c4 search for a record longer than the
	// window, per draw. Zero retries until one is found.
	MaxRecordAttempts int `json:"maxRecordAttempts"`
}

// NewDefaultConfig returns a default configuration for the Loader module.
func NewDefaultConfig() *Config {
	return &Config{
		HubConfig:          hub.DefaultConfig(),
		TokenizationConfig: tokenization.DefaultConfig(),
		CacheConfig:        tokencache.DefaultConfig(),
	}
}
