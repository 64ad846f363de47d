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
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/suggest/base/log"
	"github.com/gorse-io/suggest/config"
	"github.com/gorse-io/suggest/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"modernc.org/strutil"
)

// Data is the cleaned input of the engine.
type Data struct {
	Records []dataset.Record
	Items   []dataset.ItemProfile
}

// Loader decodes generic tables into records and item profiles.
type Loader struct {
	schema config.SchemaConfig
}

func NewLoader(schema config.SchemaConfig) *Loader {
	return &Loader{schema: schema}
}

// Load reads the ratings table and the optional items table. An empty
// itemsTable skips item metadata.
func (l *Loader) Load(ctx context.Context, source Source, ratingsTable, itemsTable string) (*Data, error) {
	start := time.Now()
	ratings, err := source.ReadTable(ctx, ratingsTable)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var items *Table
	if itemsTable != "" {
		if items, err = source.ReadTable(ctx, itemsTable); err != nil {
			return nil, errors.Trace(err)
		}
	}
	data, err := l.Decode(ratings, items)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = dataset.ValidateRatings(data.Records, l.schema.MinRating, l.schema.MaxRating); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load dataset",
		zap.Int("n_records", len(data.Records)),
		zap.Int("n_items", len(data.Items)),
		zap.Duration("used_time", time.Since(start)))
	return data, nil
}

// Decode converts tables into records and item profiles. Column kinds are
// decided over both tables so that an item column is classified the same way
// in the ratings table and in the items table.
func (l *Loader) Decode(ratings, items *Table) (*Data, error) {
	for _, column := range []string{l.schema.UserColumn, l.schema.ItemColumn, l.schema.RatingColumn} {
		if ratings.Index(column) < 0 {
			return nil, dataset.NewMissingDataError("column %s in table %s", column, ratings.Name)
		}
	}
	if items != nil && items.Index(l.schema.ItemColumn) < 0 {
		return nil, dataset.NewMissingDataError("column %s in table %s", l.schema.ItemColumn, items.Name)
	}
	reserved := mapset.NewSet(l.schema.UserColumn, l.schema.ItemColumn, l.schema.RatingColumn,
		l.schema.TimestampColumn, l.schema.TitleColumn, l.schema.ReleaseDateColumn)
	// item feature columns
	itemColumns := mapset.NewSet[string]()
	if items != nil {
		for _, column := range items.Columns {
			if !reserved.Contains(column) {
				itemColumns.Add(column)
			}
		}
	}
	if items == nil && lo.SomeBy(ratings.Columns, func(column string) bool { return !reserved.Contains(column) }) {
		log.Logger().Warn("no items table, every feature column is treated as a user feature",
			zap.String("table", ratings.Name))
	}
	kinds := make(map[string]dataset.Kind)
	for _, column := range ratings.Columns {
		if !reserved.Contains(column) {
			var cells []any
			cells = append(cells, ratings.Column(column)...)
			if items != nil {
				cells = append(cells, items.Column(column)...)
			}
			kinds[column] = l.classify(column, cells)
		}
	}
	if items != nil {
		for _, column := range items.Columns {
			if _, exist := kinds[column]; !exist && !reserved.Contains(column) {
				kinds[column] = l.classify(column, items.Column(column))
			}
		}
	}

	data := &Data{}
	// ids and labels repeat across the rows of a merged table
	labels := strutil.NewPool()
	pairs := mapset.NewThreadUnsafeSet[lo.Tuple2[string, string]]()
	for i, row := range ratings.Rows {
		var (
			record dataset.Record
			err    error
		)
		if record.UserId = labels.Align(cellString(row[ratings.Index(l.schema.UserColumn)])); record.UserId == "" {
			return nil, errors.NotValidf("empty user id in row %d of table %s", i+1, ratings.Name)
		}
		if record.ItemId = labels.Align(cellString(row[ratings.Index(l.schema.ItemColumn)])); record.ItemId == "" {
			return nil, errors.NotValidf("empty item id in row %d of table %s", i+1, ratings.Name)
		}
		pair := lo.T2(record.UserId, record.ItemId)
		if pairs.Contains(pair) {
			return nil, errors.NotValidf("duplicated rating of user %s for item %s in row %d", record.UserId, record.ItemId, i+1)
		}
		pairs.Add(pair)
		rating, ok := toFloat(row[ratings.Index(l.schema.RatingColumn)])
		if !ok || math.IsNaN(rating) {
			return nil, errors.NotValidf("rating %v in row %d of table %s", row[ratings.Index(l.schema.RatingColumn)], i+1, ratings.Name)
		}
		record.Rating = rating
		if record.Timestamp, err = l.timeCell(ratings, row, l.schema.TimestampColumn); err != nil {
			return nil, errors.Annotatef(err, "row %d of table %s", i+1, ratings.Name)
		}
		if j := ratings.Index(l.schema.TitleColumn); l.schema.TitleColumn != "" && j >= 0 {
			record.Title = cellString(row[j])
		}
		if record.ReleaseDate, err = l.timeCell(ratings, row, l.schema.ReleaseDateColumn); err != nil {
			return nil, errors.Annotatef(err, "row %d of table %s", i+1, ratings.Name)
		}
		for j, column := range ratings.Columns {
			if reserved.Contains(column) {
				continue
			}
			field, err := decodeField(labels, column, kinds[column], row[j])
			if err != nil {
				return nil, errors.Annotatef(err, "row %d of table %s", i+1, ratings.Name)
			}
			if itemColumns.Contains(column) {
				record.ItemFields = append(record.ItemFields, field)
			} else {
				record.UserFields = append(record.UserFields, field)
			}
		}
		data.Records = append(data.Records, record)
	}

	if items != nil {
		for i, row := range items.Rows {
			var (
				item dataset.ItemProfile
				err  error
			)
			if item.ItemId = labels.Align(cellString(row[items.Index(l.schema.ItemColumn)])); item.ItemId == "" {
				return nil, errors.NotValidf("empty item id in row %d of table %s", i+1, items.Name)
			}
			if j := items.Index(l.schema.TitleColumn); l.schema.TitleColumn != "" && j >= 0 {
				item.Title = cellString(row[j])
			}
			if item.ReleaseDate, err = l.timeCell(items, row, l.schema.ReleaseDateColumn); err != nil {
				return nil, errors.Annotatef(err, "row %d of table %s", i+1, items.Name)
			}
			for j, column := range items.Columns {
				if !itemColumns.Contains(column) {
					continue
				}
				field, err := decodeField(labels, column, kinds[column], row[j])
				if err != nil {
					return nil, errors.Annotatef(err, "row %d of table %s", i+1, items.Name)
				}
				item.Fields = append(item.Fields, field)
			}
			data.Items = append(data.Items, item)
		}
	}
	return data, nil
}

// classify decides the kind of a feature column. Declared columns and columns
// with a declared prefix are categorical. Otherwise a column is numerical if
// every non-null cell is a number or a boolean, a date if every non-null cell
// is a date, and text in any other case.
func (l *Loader) classify(column string, cells []any) dataset.Kind {
	if lo.Contains(l.schema.CategoricalColumns, column) ||
		lo.SomeBy(l.schema.CategoricalPrefixes, func(prefix string) bool { return strings.HasPrefix(column, prefix) }) {
		return dataset.Categorical
	}
	numerical, date := true, true
	for _, cell := range cells {
		if cell == nil {
			continue
		}
		if numerical {
			if _, ok := toFloat(cell); !ok {
				numerical = false
			}
		}
		if date {
			if _, ok := toTime(cell); !ok {
				date = false
			}
		}
		if !numerical && !date {
			return dataset.Text
		}
	}
	if numerical {
		return dataset.Numerical
	}
	return dataset.Date
}

func (l *Loader) timeCell(table *Table, row []any, column string) (time.Time, error) {
	if column == "" {
		return time.Time{}, nil
	}
	j := table.Index(column)
	if j < 0 || row[j] == nil {
		return time.Time{}, nil
	}
	t, ok := toTime(row[j])
	if !ok {
		return time.Time{}, errors.NotValidf("date %v in column %s", row[j], column)
	}
	return t, nil
}

func decodeField(labels *strutil.Pool, column string, kind dataset.Kind, cell any) (dataset.Field, error) {
	switch kind {
	case dataset.Categorical:
		return dataset.CategoricalField(column, labels.Align(cellString(cell))), nil
	case dataset.Numerical:
		if cell == nil {
			return dataset.NumericalField(column, math.NaN()), nil
		}
		value, ok := toFloat(cell)
		if !ok {
			return dataset.Field{}, errors.NotValidf("number %v in column %s", cell, column)
		}
		return dataset.NumericalField(column, value), nil
	case dataset.Date:
		if cell == nil {
			return dataset.DateField(column, time.Time{}), nil
		}
		t, _ := toTime(cell)
		return dataset.DateField(column, t), nil
	default:
		return dataset.TextField(column, cellString(cell)), nil
	}
}

func toFloat(cell any) (float64, bool) {
	switch v := cell.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case bool:
		return lo.Ternary(v, 1.0, 0.0), true
	case string:
		s := strings.TrimSpace(v)
		switch strings.ToLower(s) {
		case "true":
			return 1, true
		case "false":
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(cell any) (time.Time, bool) {
	switch v := cell.(type) {
	case time.Time:
		return v.UTC(), true
	case string:
		s := strings.TrimSpace(v)
		// bare numbers are not dates
		if _, err := strconv.ParseFloat(s, 64); err == nil || s == "" {
			return time.Time{}, false
		}
		t, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	default:
		return time.Time{}, false
	}
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
