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

package export_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llm-d/llm-d-calibration-data/pkg/calibration"
	"github.com/llm-d/llm-d-calibration-data/pkg/export"
	"github.com/llm-d/llm-d-calibration-data/pkg/tokenization"
)

func testSet(t *testing.T, opts calibration.Options, eval calibration.EvalStream) *export.Set {
	t.Helper()

	tokens := make(tokenization.TokenSequence, 64)
	for i := range tokens {
		tokens[i] = int64(i * 3)
	}
	samples, err := calibration.MakeWindowsSeeded(tokens, 4, opts.Seed, opts.SeqLen)
	require.NoError(t, err)

	return export.NewSet(opts, samples, eval)
}

func TestNewSet(t *testing.T) {
	opts := calibration.DefaultOptions()
	opts.Name = "c4"
	opts.SeqLen = 8

	set := testSet(t, opts, calibration.EvalStream{InputIDs: tokenization.TokenSequence{1, 2}})
	_, err := uuid.Parse(set.RunID)
	assert.NoError(t, err)
	assert.Empty(t, set.CodeCorpus)
	assert.Len(t, set.Samples, 4)

	opts.Name = "code"
	opts.CodeCorpus = calibration.CodeCorpusCodeParrot
	other := testSet(t, opts, calibration.EvalStream{})
	assert.NotEqual(t, set.RunID, other.RunID)
	assert.Equal(t, calibration.CodeCorpusCodeParrot, other.CodeCorpus)
}

func TestWriteRead(t *testing.T) {
	opts := calibration.DefaultOptions()
	opts.Name = "code"
	opts.SeqLen = 8
	opts.CodeCorpus = calibration.CodeCorpusCodeParrot

	set := testSet(t, opts, calibration.EvalStream{
		Records: []tokenization.TokenSequence{{1, 2, 3}, {4}},
	})

	for _, format := range []export.Format{export.FormatJSON, export.FormatMsgpack} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, export.Write(&buf, set, format))

			got, err := export.Read(&buf, format)
			require.NoError(t, err)

			assert.Equal(t, set.RunID, got.RunID)
			assert.True(t, set.CreatedAt.Equal(got.CreatedAt))
			assert.Equal(t, set.Samples, got.Samples)
			assert.Equal(t, set.Eval.Records, got.Eval.Records)
			assert.True(t, got.Eval.IsPerRecord())
			assert.Equal(t, "codeparrot", got.CodeCorpus)
		})
	}
}

func TestWriteFile(t *testing.T) {
	opts := calibration.DefaultOptions()
	opts.Name = "wikitext2"
	opts.SeqLen = 8
	set := testSet(t, opts, calibration.EvalStream{InputIDs: tokenization.TokenSequence{7, 8, 9}})

	path := filepath.Join(t.TempDir(), "calibration.msgpack")
	format := export.FormatFromPath(path)
	require.Equal(t, export.FormatMsgpack, format)
	require.NoError(t, export.WriteFile(path, set, format))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := export.Read(f, format)
	require.NoError(t, err)
	assert.Equal(t, set.Eval.InputIDs, got.Eval.InputIDs)
	assert.False(t, got.Eval.IsPerRecord())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files may be left behind")
}

func TestParseFormat(t *testing.T) {
	format, err := export.ParseFormat("MSGPACK")
	require.NoError(t, err)
	assert.Equal(t, export.FormatMsgpack, format)

	_, err = export.ParseFormat("npz")
	assert.Error(t, err)
	assert.Error(t, export.Write(&bytes.Buffer{}, &export.Set{}, "npz"))
	assert.Equal(t, export.FormatJSON, export.FormatFromPath("out.json"))
}
