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

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/llm-d/llm-d-calibration-data/pkg/utils"
)

// parquetReadParallelism is the number of goroutines parquet-go uses per column.
const parquetReadParallelism = 4

// ReadParquetFile reads the requested string columns of a parquet file.
// Null values read as the empty string.
func ReadParquetFile(path string, columns ...string) (*Table, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, parquetReadParallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet footer of %s: %w", path, err)
	}
	defer pr.ReadStop()

	rows := pr.GetNumRows()
	root := pr.SchemaHandler.GetRootExName()

	values := make(map[string][]string, len(columns))
	for _, name := range columns {
		column := make([]string, 0, rows)
		if rows > 0 {
			raw, _, _, err := pr.ReadColumnByPath(root+common.PAR_GO_PATH_DELIMITER+name, rows)
			if err != nil {
				return nil, fmt.Errorf("failed to read column %q of %s: %w", name, path, err)
			}
			column = utils.SliceMap(raw, parquetString)
		}
		values[name] = column
	}

	return NewTable(values)
}

func parquetString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}
