// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/gorse-io/suggest/storage/blob"
	"github.com/juju/errors"
)

// CSVSource reads <table>.csv files with a header line from a blob store.
// Empty cells are NULL.
type CSVSource struct {
	store blob.Store
}

func NewCSVSource(store blob.Store) *CSVSource {
	return &CSVSource{store: store}
}

func (s *CSVSource) ReadTable(ctx context.Context, name string) (*Table, error) {
	r, err := s.store.Open(ctx, name+".csv")
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close()
	reader := csv.NewReader(r)
	reader.ReuseRecord = false
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NotValidf("empty file %s.csv", name)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	table := &Table{Name: name, Columns: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Annotatef(err, "read %s.csv", name)
		}
		row := make([]any, len(record))
		for i, cell := range record {
			if cell != "" {
				row[i] = cell
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func (s *CSVSource) Close() error {
	return s.store.Close()
}
