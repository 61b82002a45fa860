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
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"

	"github.com/llm-d/llm-d-calibration-data/pkg/hub"
)

var errReadOnly = errors.New("remote parquet file is read-only")

// remoteReadAhead is the minimum ranged read. parquet-go decodes the footer
// byte by byte, so reads are served from one buffered block.
const remoteReadAhead = 64 << 10

// RangeReader reads parts of hub files without downloading them.
type RangeReader interface {
	Stat(ctx context.Context, ref hub.FileRef) (int64, error)
	ReadRange(ctx context.Context, ref hub.FileRef, offset int64, n int) ([]byte, error)
}

// remoteFile is a read-only source.ParquetFile over ranged hub reads. Only
// the bytes parquet-go asks for are transferred.
type remoteFile struct {
	ctx    context.Context //nolint:containedctx // source.ParquetFile has no ctx parameters
	client RangeReader
	ref    hub.FileRef
	size   int64
	offset int64

	block       []byte
	blockOffset int64
}

var _ source.ParquetFile = &remoteFile{}

func (f *remoteFile) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.offset + offset
	case io.SeekEnd:
		abs = f.size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative offset %d in %s", abs, f.ref.String())
	}
	f.offset = abs
	return abs, nil
}

func (f *remoteFile) Read(p []byte) (int, error) {
	if f.offset >= f.size {
		return 0, io.EOF
	}
	if f.offset < f.blockOffset || f.offset >= f.blockOffset+int64(len(f.block)) {
		n := int(min(int64(max(len(p), remoteReadAhead)), f.size-f.offset))
		data, err := f.client.ReadRange(f.ctx, f.ref, f.offset, n)
		if err != nil {
			return 0, err
		}
		if len(data) == 0 {
			return 0, io.ErrUnexpectedEOF
		}
		f.block, f.blockOffset = data, f.offset
	}

	copied := copy(p, f.block[f.offset-f.blockOffset:])
	f.offset += int64(copied)
	return copied, nil
}

func (f *remoteFile) Write([]byte) (int, error) {
	return 0, errReadOnly
}

func (f *remoteFile) Close() error {
	return nil
}

func (f *remoteFile) Open(string) (source.ParquetFile, error) {
	clone := *f
	clone.offset = 0
	return &clone, nil
}

func (f *remoteFile) Create(string) (source.ParquetFile, error) {
	return nil, errReadOnly
}

// CountRemoteParquetRows returns the row count recorded in the footer of a
// parquet file on the hub. Only the footer is transferred.
func CountRemoteParquetRows(ctx context.Context, client RangeReader, ref hub.FileRef) (int64, error) {
	size, err := client.Stat(ctx, ref)
	if err != nil {
		return 0, err
	}

	return countParquetRows(&remoteFile{ctx: ctx, client: client, ref: ref, size: size}, ref.String())
}

// CountParquetRows returns the row count recorded in the footer of a local
// parquet file.
func CountParquetRows(path string) (int64, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fr.Close()

	return countParquetRows(fr, path)
}

// countParquetRows decodes only the footer; no column buffers are opened.
func countParquetRows(file source.ParquetFile, name string) (int64, error) {
	pr := &reader.ParquetReader{PFile: file}
	if err := pr.ReadFooter(); err != nil {
		return 0, fmt.Errorf("failed to read parquet footer of %s: %w", name, err)
	}
	return pr.Footer.GetNumRows(), nil
}
