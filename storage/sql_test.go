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
	"os"
	"path/filepath"
	"testing"

	"github.com/gorse-io/suggest/config"
	"github.com/gorse-io/suggest/dataset"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func scenarioTables() (*Table, *Table) {
	ratings := &Table{
		Name:    "merged_dataset",
		Columns: []string{"user_id", "movie_id", "rating", "title", "release_date", "age", "Action"},
		Rows: [][]any{
			{"user1", "item1", 5.0, "Toy Story", "1995-01-01", int64(24), int64(0)},
			{"user1", "item2", 3.0, nil, nil, int64(24), int64(1)},
			{"user2", "item1", 4.0, "Toy Story", "1995-01-01", int64(53), int64(0)},
			{"user2", "item2", 2.0, nil, nil, int64(53), int64(1)},
			{"user3", "item1", 1.0, "Toy Story", "1995-01-01", int64(33), int64(0)},
		},
	}
	items := &Table{
		Name:    "movies_clean",
		Columns: []string{"movie_id", "title", "release_date", "Action"},
		Rows: [][]any{
			{"item1", "Toy Story", "1995-01-01", int64(0)},
			{"item3", "Heat", "1995-12-15", int64(1)},
		},
	}
	return ratings, items
}

type SQLTestSuite struct {
	suite.Suite
	uri string
}

func (suite *SQLTestSuite) SetupTest() {
	ctx := context.Background()
	source, err := OpenSQL(suite.uri, "test_")
	suite.Require().NoError(err)
	defer source.Close()
	ratings, items := scenarioTables()
	for _, table := range []*Table{ratings, items} {
		_ = source.gormDB.Migrator().DropTable(source.Table(table.Name))
		suite.Require().NoError(source.Init(ctx, table))
	}
}

func (suite *SQLTestSuite) TestReadTable() {
	ctx := context.Background()
	source, err := Open(ctx, suite.uri, "test_")
	suite.Require().NoError(err)
	defer source.Close()
	table, err := source.ReadTable(ctx, "movies_clean")
	suite.NoError(err)
	suite.Equal([]string{"movie_id", "title", "release_date", "Action"}, table.Columns)
	suite.Len(table.Rows, 2)
	suite.Equal("Heat", table.Rows[1][1])
}

func (suite *SQLTestSuite) TestLoad() {
	ctx := context.Background()
	source, err := Open(ctx, suite.uri, "test_")
	suite.Require().NoError(err)
	defer source.Close()
	data, err := NewLoader(config.GetDefaultConfig().Schema).Load(ctx, source, "merged_dataset", "movies_clean")
	suite.NoError(err)
	suite.Len(data.Records, 5)
	suite.Len(data.Items, 2)
	matrix, err := dataset.NewRatingMatrix(data.Records)
	suite.NoError(err)
	suite.Equal([]string{"item1", "item2"}, matrix.RatedItems("user1"))
	rating, ok := matrix.Get("user3", "item1")
	suite.True(ok)
	suite.Equal(1.0, rating)
	_, ok = matrix.Get("user3", "item2")
	suite.False(ok)
	suite.Equal(dataset.NumericalField("Action", 1), data.Items[1].Fields[0])
	suite.Equal(1995, data.Items[1].ReleaseDate.Year())
}

func TestSQLite(t *testing.T) {
	s := new(SQLTestSuite)
	s.uri = SQLitePrefix + filepath.Join(t.TempDir(), "suggest.db")
	suite.Run(t, s)
}

func TestMySQL(t *testing.T) {
	uri, ok := os.LookupEnv("MYSQL_URI")
	if !ok {
		t.Skip("MYSQL_URI is not set")
	}
	s := new(SQLTestSuite)
	s.uri = uri
	suite.Run(t, s)
}

func TestPostgres(t *testing.T) {
	uri, ok := os.LookupEnv("POSTGRES_URI")
	if !ok {
		t.Skip("POSTGRES_URI is not set")
	}
	s := new(SQLTestSuite)
	s.uri = uri
	suite.Run(t, s)
}

func TestClickHouse(t *testing.T) {
	uri, ok := os.LookupEnv("CLICKHOUSE_URI")
	if !ok {
		t.Skip("CLICKHOUSE_URI is not set")
	}
	s := new(SQLTestSuite)
	s.uri = uri
	suite.Run(t, s)
}

func TestAppendURLParams(t *testing.T) {
	uri, err := AppendURLParams("sqlite:///tmp/suggest.db", []lo.Tuple2[string, string]{
		{"_pragma", "busy_timeout(10000)"},
		{"_pragma", "journal_mode(wal)"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "sqlite:///tmp/suggest.db?_pragma=busy_timeout%2810000%29&_pragma=journal_mode%28wal%29", uri)
}
