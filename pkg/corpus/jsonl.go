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
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

// ReadJSONLinesFile reads a JSON-lines file, gzip-compressed or not.
func ReadJSONLinesFile(path string, columns ...string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	table, err := ReadJSONLines(f, columns...)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return table, nil
}

// ReadJSONLines reads one JSON object per record and keeps the requested
// string columns. Gzip input is detected from its magic bytes. A missing or
// null field reads as the empty string.
func ReadJSONLines(r io.Reader, columns ...string) (*Table, error) {
	br := bufio.NewReader(r)

	var src io.Reader = br
	if magic, err := br.Peek(len(gzipMagic)); err == nil && bytes.Equal(magic, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	values := make(map[string][]string, len(columns))
	for _, name := range columns {
		values[name] = []string{}
	}

	dec := json.NewDecoder(src)
	for record := 0; ; record++ {
		var fields map[string]json.RawMessage
		if err := dec.Decode(&fields); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode record %d: %w", record, err)
		}

		for _, name := range columns {
			var value string
			if raw, ok := fields[name]; ok && !bytes.Equal(raw, []byte("null")) {
				if err := json.Unmarshal(raw, &value); err != nil {
					return nil, fmt.Errorf("record %d: field %q is not a string: %w", record, name, err)
				}
			}
			values[name] = append(values[name], value)
		}
	}

	return NewTable(values)
}
