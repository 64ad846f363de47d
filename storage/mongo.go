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

	"github.com/juju/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

// MongoSource reads collections as tables. Columns follow the order in which
// keys first appear and _id is skipped.
type MongoSource struct {
	TablePrefix
	client *mongo.Client
	dbName string
}

func OpenMongo(ctx context.Context, path, tablePrefix string) (*MongoSource, error) {
	var err error
	source := &MongoSource{TablePrefix: TablePrefix(tablePrefix)}
	opts := options.Client()
	opts.Monitor = otelmongo.NewMonitor()
	opts.ApplyURI(path)
	if source.client, err = mongo.Connect(ctx, opts); err != nil {
		return nil, errors.Trace(err)
	}
	// parse DSN and extract database name
	if cs, err := connstring.ParseAndValidate(path); err != nil {
		return nil, errors.Trace(err)
	} else {
		source.dbName = cs.Database
	}
	return source, nil
}

func (m *MongoSource) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoSource) ReadTable(ctx context.Context, name string) (*Table, error) {
	c := m.client.Database(m.dbName).Collection(m.Table(name))
	cursor, err := c.Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Annotatef(err, "read collection %s", m.Table(name))
	}
	defer cursor.Close(ctx)
	table := &Table{Name: name}
	index := make(map[string]int)
	var documents []bson.D
	for cursor.Next(ctx) {
		var doc bson.D
		if err = cursor.Decode(&doc); err != nil {
			return nil, errors.Trace(err)
		}
		for _, e := range doc {
			if e.Key == "_id" {
				continue
			}
			if _, exist := index[e.Key]; !exist {
				index[e.Key] = len(table.Columns)
				table.Columns = append(table.Columns, e.Key)
			}
		}
		documents = append(documents, doc)
	}
	if err = cursor.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	for _, doc := range documents {
		row := make([]any, len(table.Columns))
		for _, e := range doc {
			if i, exist := index[e.Key]; exist {
				row[i] = mongoValue(e.Value)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func mongoValue(value any) any {
	switch v := value.(type) {
	case primitive.DateTime:
		return v.Time().UTC()
	case primitive.Null:
		return nil
	case int32:
		return int64(v)
	default:
		return v
	}
}

// Insert writes documents into a collection. It is used to seed test and
// demo databases.
func (m *MongoSource) Insert(ctx context.Context, table *Table) error {
	docs := make([]any, len(table.Rows))
	for i, row := range table.Rows {
		doc := make(bson.D, 0, len(row))
		for j, column := range table.Columns {
			if row[j] != nil {
				doc = append(doc, bson.E{Key: column, Value: row[j]})
			}
		}
		docs[i] = doc
	}
	if len(docs) == 0 {
		return nil
	}
	_, err := m.client.Database(m.dbName).Collection(m.Table(table.Name)).InsertMany(ctx, docs)
	return errors.Trace(err)
}

func (m *MongoSource) Close() error {
	return m.client.Disconnect(context.Background())
}
