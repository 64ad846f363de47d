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
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorse-io/suggest/base/log"
	"github.com/gorse-io/suggest/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Table is a table read from a source. Rows are aligned with Columns and a
// nil cell is a NULL.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Index returns the position of a column, or -1.
func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Column returns the cells of a column.
func (t *Table) Column(column string) []any {
	i := t.Index(column)
	if i < 0 {
		return nil
	}
	cells := make([]any, len(t.Rows))
	for j, row := range t.Rows {
		cells[j] = row[i]
	}
	return cells
}

// Source reads whole tables.
type Source interface {
	ReadTable(ctx context.Context, name string) (*Table, error)
	Close() error
}

// ConnectTimeout bounds the time spent waiting for a database to answer.
var ConnectTimeout = 30 * time.Second

// Open a source by URI prefix.
func Open(ctx context.Context, uri, tablePrefix string) (Source, error) {
	switch {
	case strings.HasPrefix(uri, CSVPrefix):
		return NewCSVSource(blob.NewPOSIX(uri[len(CSVPrefix):])), nil
	case strings.HasPrefix(uri, CSVS3Prefix), strings.HasPrefix(uri, CSVGCSPrefix), strings.HasPrefix(uri, CSVAzurePrefix):
		store, err := blob.Open(ctx, strings.TrimPrefix(uri, "csv+"))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewCSVSource(store), nil
	case strings.HasPrefix(uri, MySQLPrefix),
		strings.HasPrefix(uri, PostgresPrefix), strings.HasPrefix(uri, PostgreSQLPrefix),
		strings.HasPrefix(uri, ClickhousePrefix), strings.HasPrefix(uri, CHHTTPPrefix), strings.HasPrefix(uri, CHHTTPSPrefix),
		strings.HasPrefix(uri, SQLitePrefix):
		source, err := OpenSQL(uri, tablePrefix)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if err = ping(ctx, source.Ping); err != nil {
			_ = source.Close()
			return nil, errors.Trace(err)
		}
		return source, nil
	case strings.HasPrefix(uri, MongoPrefix), strings.HasPrefix(uri, MongoSrvPrefix):
		source, err := OpenMongo(ctx, uri, tablePrefix)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if err = ping(ctx, source.Ping); err != nil {
			_ = source.Close()
			return nil, errors.Trace(err)
		}
		return source, nil
	}
	return nil, errors.NotSupportedf("source %s", log.RedactDBURL(uri))
}

// ping retries with exponential backoff until the database answers or
// ConnectTimeout elapses.
func ping(ctx context.Context, f func(context.Context) error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, f(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(ConnectTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Logger().Warn("source is not ready", zap.Error(err), zap.Duration("retry_after", next))
		}))
	return errors.Trace(err)
}
