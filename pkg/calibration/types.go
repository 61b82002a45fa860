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

// Package calibration produces calibration windows and evaluation streams
// for post-training quantization from named text and code corpora.
package calibration

import (
	"github.com/llm-d/llm-d-calibration-data/pkg/tokenization"
)

// Mask is the target value of positions excluded from the loss.
const Mask int64 = -100

// Sample is one calibration window. Target equals Input with every
// position except the last set to Mask.
type Sample struct {
	Input  tokenization.TokenSequence `json:"input"`
	Target tokenization.TokenSequence `json:"target"`
}

// TrainSet is the ordered list of windows drawn for one loader call.
type TrainSet []Sample

// EvalStream is the held-out evaluation artifact. Flat corpora fill
// InputIDs with one long encoding; the per-record code corpus fills Records.
type EvalStream struct {
	InputIDs tokenization.TokenSequence   `json:"inputIds,omitempty"`
	Records  []tokenization.TokenSequence `json:"records"`
}

// IsPerRecord reports whether the stream holds per-record encodings.
func (e EvalStream) IsPerRecord() bool {
	return e.Records != nil
}

// Len returns the total number of tokens in the stream.
func (e EvalStream) Len() int {
	if !e.IsPerRecord() {
		return len(e.InputIDs)
	}
	total := 0
	for _, record := range e.Records {
		total += len(record)
	}
	return total
}
