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

package corpus

import (
	"fmt"
	"path"
	"strings"
)

// Format is the on-disk format of a source's files.
type Format string

const (
	FormatParquet   Format = "parquet"
	FormatJSONLines Format = "jsonl"
)

// Split names.
const (
	SplitTrain      = "train"
	SplitValidation = "validation"
	SplitTest       = "test"
)

// Column names of the built-in corpora.
const (
	ColumnText              = "text"
	ColumnSentence          = "sentence"
	ColumnPrompt            = "prompt"
	ColumnCanonicalSolution = "canonical_solution"
	ColumnContent           = "content"
)

const parquetConversionRevision = "refs/convert/parquet"

// Source describes one split of a hub dataset.
type Source struct {
	// Name identifies the source in logs and cache keys, e.g. "c4/validation".
	Name     string   `json:"name"`
	Repo     string   `json:"repo"`
	Revision string   `json:"revision,omitempty"`
	Files    []string `json:"files,omitempty"`
	// SplitDirs are candidate repository directories holding the split's
	// parquet shards. When Files is empty the first directory with shards
	// is used.
	SplitDirs []string `json:"splitDirs,omitempty"`
	Format    Format   `json:"format,omitempty"`
	Columns   []string `json:"columns"`
	// Fraction keeps the leading ceil(n*Fraction) records of the whole
	// split. Zero keeps all.
	Fraction float64 `json:"fraction,omitempty"`
}

// Validate checks that the source can be fetched.
func (s Source) Validate() error {
	switch {
	case s.Repo == "":
		return fmt.Errorf("source %q: repo is required", s.Name)
	case len(s.Files) == 0 && len(s.SplitDirs) == 0:
		return fmt.Errorf("source %q: files or split directories are required", s.Name)
	case len(s.Columns) == 0:
		return fmt.Errorf("source %q: at least one column is required", s.Name)
	case s.Fraction < 0 || s.Fraction > 1:
		return fmt.Errorf("source %q: fraction %v is outside [0, 1]", s.Name, s.Fraction)
	}
	return nil
}

// isParquet reports whether every file is read as parquet.
func (s Source) isParquet(files []string) bool {
	for _, file := range files {
		if s.formatOf(file) != FormatParquet {
			return false
		}
	}
	return true
}

// formatOf returns the configured format, or infers it from the file name.
func (s Source) formatOf(file string) Format {
	if s.Format != "" {
		return s.Format
	}
	base := strings.TrimSuffix(path.Base(file), ".gz")
	if strings.HasSuffix(base, ".parquet") {
		return FormatParquet
	}
	return FormatJSONLines
}

// WikiText2Source returns a split of the raw WikiText-2 benchmark.
func WikiText2Source(split string) Source {
	return Source{
		Name:    "wikitext2/" + split,
		Repo:    "Salesforce/wikitext",
		Files:   []string{fmt.Sprintf("wikitext-2-raw-v1/%s-00000-of-00001.parquet", split)},
		Format:  FormatParquet,
		Columns: []string{ColumnText},
	}
}

// PTBSource returns a split of the Penn Treebank sentence corpus.
func PTBSource(split string) Source {
	return Source{
		Name:     "ptb/" + split,
		Repo:     "ptb-text-only/ptb_text_only",
		Revision: parquetConversionRevision,
		Files:    []string{fmt.Sprintf("penn_treebank/%s/0000.parquet", split)},
		Format:   FormatParquet,
		Columns:  []string{ColumnSentence},
	}
}

// C4Source returns the first shard of a C4 English split.
func C4Source(split string) Source {
	file := "en/c4-train.00000-of-01024.json.gz"
	if split == SplitValidation {
		file = "en/c4-validation.00000-of-00008.json.gz"
	}
	return Source{
		Name:    "c4/" + split,
		Repo:    "allenai/c4",
		Files:   []string{file},
		Format:  FormatJSONLines,
		Columns: []string{ColumnText},
	}
}

// HumanEvalSource returns the HumanEval problems (test split only).
func HumanEvalSource() Source {
	return Source{
		Name:    "humaneval/test",
		Repo:    "openai/openai_humaneval",
		Files:   []string{"openai_humaneval/test-00000-of-00001.parquet"},
		Format:  FormatParquet,
		Columns: []string{ColumnPrompt, ColumnCanonicalSolution},
	}
}

// codeParrotFraction is the share of the split used for calibration.
const codeParrotFraction = 0.001

// CodeParrotSource returns a 0.1% record slice of the deduplicated
// CodeParrot corpus. split is SplitTrain or SplitValidation; each lives in
// its own repository as that repository's train split. Large repositories
// are only partially converted to parquet, under partial-train.
func CodeParrotSource(split string) Source {
	repo := "codeparrot/codeparrot-clean-train"
	if split == SplitValidation {
		repo = "codeparrot/codeparrot-clean-valid"
	}
	return Source{
		Name:      "codeparrot/" + split,
		Repo:      repo,
		Revision:  parquetConversionRevision,
		SplitDirs: []string{"default/train", "default/partial-train"},
		Format:    FormatParquet,
		Columns:   []string{ColumnContent},
		Fraction:  codeParrotFraction,
	}
}
