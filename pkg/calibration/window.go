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
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/llm-d/llm-d-calibration-data/pkg/metrics"
	"github.com/llm-d/llm-d-calibration-data/pkg/tokenization"
)

var (
	// ErrSequenceTooShort is returned when a sequence cannot hold a window,
	// i.e. its length does not exceed seqlen.
	ErrSequenceTooShort = errors.New("sequence too short for window")
	// ErrInvalidArgument is returned for a non-positive seqlen or a negative
	// sample count.
	ErrInvalidArgument = errors.New("invalid argument")
)

// NewRand returns the generator every draw of a loader call is taken from.
// Equal seeds give equal draw sequences.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed))) //nolint:gosec // reproducible sampling, not security
}

// MakeWindows draws nsamples windows of seqlen tokens from tokens, with
// replacement, in draw order.
func MakeWindows(tokens tokenization.TokenSequence, nsamples int, rng *rand.Rand, seqlen int,
) (TrainSet, error) {
	if nsamples < 0 {
		return nil, fmt.Errorf("%w: nsamples %d is negative", ErrInvalidArgument, nsamples)
	}

	samples := make(TrainSet, 0, nsamples)
	for range nsamples {
		sample, err := DrawWindow(tokens, rng, seqlen)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// MakeWindowsSeeded is MakeWindows with a generator created from seed.
func MakeWindowsSeeded(tokens tokenization.TokenSequence, nsamples int, seed int64, seqlen int,
) (TrainSet, error) {
	return MakeWindows(tokens, nsamples, NewRand(seed), seqlen)
}

// DrawWindow draws one window. The start is uniform in
// [0, len(tokens)-seqlen-1]; the returned slices do not alias tokens.
func DrawWindow(tokens tokenization.TokenSequence, rng *rand.Rand, seqlen int) (Sample, error) {
	if seqlen <= 0 {
		return Sample{}, fmt.Errorf("%w: seqlen %d must be positive", ErrInvalidArgument, seqlen)
	}
	if len(tokens) <= seqlen {
		return Sample{}, fmt.Errorf("%w: %d tokens, window of %d", ErrSequenceTooShort, len(tokens), seqlen)
	}

	start := rng.IntN(len(tokens) - seqlen)

	input := make(tokenization.TokenSequence, seqlen)
	copy(input, tokens[start:start+seqlen])

	target := make(tokenization.TokenSequence, seqlen)
	for i := range seqlen - 1 {
		target[i] = Mask
	}
	target[seqlen-1] = input[seqlen-1]

	metrics.SamplesDrawn.Inc()
	return Sample{Input: input, Target: target}, nil
}
