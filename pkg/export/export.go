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

// Package export serializes calibration sets for consumption by quantizers.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/llm-d/llm-d-calibration-data/pkg/calibration"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", name)
	}
}

// FormatFromPath infers the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk":
		return FormatMsgpack
	default:
		return FormatJSON
	}
}

// Set is one exported loader result.
type Set struct {
	RunID     string    `json:"runId"`
	CreatedAt time.Time `json:"createdAt"`

	Corpus     string `json:"corpus"`
	CodeCorpus string `json:"codeCorpus,omitempty"`
	Model      string `json:"model"`
	Seed       int64  `json:"seed"`
	SeqLen     int    `json:"seqlen"`
	NSamples   int    `json:"nsamples"`

	Samples calibration.TrainSet   `json:"samples"`
	Eval    calibration.EvalStream `json:"eval"`
}

// NewSet wraps a loader result with a fresh run id.
func NewSet(opts calibration.Options, samples calibration.TrainSet, eval calibration.EvalStream) *Set {
	set := &Set{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Corpus:    opts.Name,
		Model:     opts.Model,
		Seed:      opts.Seed,
		SeqLen:    opts.SeqLen,
		NSamples:  opts.NSamples,
		Samples:   samples,
		Eval:      eval,
	}
	if kind, _ := calibration.Match(opts.Name); kind == calibration.KindCode {
		set.CodeCorpus = opts.CodeCorpus
	}
	return set
}

// Write encodes set to w.
func Write(w io.Writer, set *Set, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		if err := enc.Encode(set); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(set); err != nil {
			return fmt.Errorf("failed to encode msgpack: %w", err)
		}
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
	return nil
}

// Read decodes a Set written by Write.
func Read(r io.Reader, format Format) (*Set, error) {
	var set Set
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&set); err != nil {
			return nil, fmt.Errorf("failed to decode JSON: %w", err)
		}
	case FormatMsgpack:
		dec := msgpack.NewDecoder(r)
		dec.SetCustomStructTag("json")
		if err := dec.Decode(&set); err != nil {
			return nil, fmt.Errorf("failed to decode msgpack: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	return &set, nil
}

// WriteFile writes set to path, replacing any existing file only once the
// encoding succeeded.
func WriteFile(path string, set *Set, format Format) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op once renamed

	buf := bufio.NewWriter(tmp)
	if err := Write(buf, set, format); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := buf.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}
