// Copyright 2022 gorse Project Authors
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
	"database/sql"
	"net/url"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	_ "github.com/mailru/go-clickhouse/v2"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/driver/clickhouse"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
	ClickHouse
)

// SQLSource reads tables through gorm.
type SQLSource struct {
	TablePrefix
	driver SQLDriver
	client *sql.DB
	gormDB *gorm.DB
}

// OpenSQL connects to a MySQL, PostgreSQL, ClickHouse or SQLite database.
func OpenSQL(path, tablePrefix string) (*SQLSource, error) {
	var err error
	source := &SQLSource{TablePrefix: TablePrefix(tablePrefix)}
	if strings.HasPrefix(path, MySQLPrefix) {
		name := path[len(MySQLPrefix):]
		if name, err = AppendMySQLParams(name, map[string]string{
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		source.driver = MySQL
		if source.client, err = otelsql.Open("mysql", name,
			otelsql.WithAttributes(attribute.String("db.system", "mysql")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		source.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: source.client}), NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return source, nil
	} else if strings.HasPrefix(path, PostgresPrefix) || strings.HasPrefix(path, PostgreSQLPrefix) {
		source.driver = Postgres
		if source.client, err = otelsql.Open("postgres", path,
			otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		source.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: source.client}), NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return source, nil
	} else if strings.HasPrefix(path, ClickhousePrefix) || strings.HasPrefix(path, CHHTTPPrefix) || strings.HasPrefix(path, CHHTTPSPrefix) {
		// replace schema
		parsed, err := url.Parse(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if strings.HasPrefix(path, CHHTTPSPrefix) {
			parsed.Scheme = "https"
		} else {
			parsed.Scheme = "http"
		}
		source.driver = ClickHouse
		if source.client, err = otelsql.Open("chhttp", parsed.String(),
			otelsql.WithAttributes(attribute.String("db.system", "clickhouse")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		source.gormDB, err = gorm.Open(clickhouse.New(clickhouse.Config{Conn: source.client}), NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return source, nil
	} else if strings.HasPrefix(path, SQLitePrefix) {
		// append parameters
		if path, err = AppendURLParams(path, []lo.Tuple2[string, string]{
			{"_pragma", "busy_timeout(10000)"},
			{"_pragma", "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		name := path[len(SQLitePrefix):]
		source.driver = SQLite
		if source.client, err = otelsql.Open("sqlite", name,
			otelsql.WithAttributes(attribute.String("db.system", "sqlite")),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		source.gormDB, err = gorm.Open(sqlite.Dialector{Conn: source.client}, NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return source, nil
	}
	return nil, errors.NotSupportedf("database %s", path)
}

func (s *SQLSource) Ping(ctx context.Context) error {
	return s.client.PingContext(ctx)
}

// ReadTable selects every row of a table. Byte slices are returned as strings.
func (s *SQLSource) ReadTable(ctx context.Context, name string) (*Table, error) {
	rows, err := s.gormDB.WithContext(ctx).Table(s.Table(name)).Rows()
	if err != nil {
		return nil, errors.Annotatef(err, "read table %s", s.Table(name))
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Trace(err)
	}
	table := &Table{Name: name, Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err = rows.Scan(pointers...); err != nil {
			return nil, errors.Trace(err)
		}
		for i, value := range values {
			if b, ok := value.([]byte); ok {
				values[i] = string(b)
			}
		}
		table.Rows = append(table.Rows, values)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return table, nil
}

// Init creates a table from a header and rows. It is used to seed test and
// demo databases.
func (s *SQLSource) Init(ctx context.Context, table *Table) error {
	return s.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quoted := lo.Map(table.Columns, func(column string, _ int) string {
			return tx.Statement.Quote(column) + " " + s.columnType(table.Column(column))
		})
		create := "CREATE TABLE " + tx.Statement.Quote(s.Table(table.Name)) + " (" + strings.Join(quoted, ", ") + ")"
		if s.driver == ClickHouse {
			create += " ENGINE = MergeTree() ORDER BY tuple()"
		}
		if err := tx.Exec(create).Error; err != nil {
			return errors.Trace(err)
		}
		for _, row := range table.Rows {
			record := make(map[string]any, len(row))
			for i, column := range table.Columns {
				record[column] = row[i]
			}
			if err := tx.Table(s.Table(table.Name)).Create(record).Error; err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	})
}

func (s *SQLSource) columnType(cells []any) string {
	kind := "number"
	for _, cell := range cells {
		switch cell.(type) {
		case nil:
		case int, int32, int64, float32, float64:
		case bool:
			if kind == "number" {
				kind = "bool"
			}
		case time.Time:
			kind = "time"
		default:
			kind = "text"
		}
		if kind == "text" {
			break
		}
	}
	switch kind {
	case "bool":
		if s.driver == ClickHouse {
			return "Nullable(UInt8)"
		}
		return "BOOLEAN"
	case "time":
		if s.driver == ClickHouse {
			return "Nullable(DateTime)"
		}
		if s.driver == Postgres {
			return "TIMESTAMP"
		}
		return "DATETIME"
	case "number":
		if s.driver == ClickHouse {
			return "Nullable(Float64)"
		}
		return "DOUBLE PRECISION"
	default:
		if s.driver == ClickHouse {
			return "Nullable(String)"
		}
		return "TEXT"
	}
}

func (s *SQLSource) Close() error {
	return s.client.Close()
}
