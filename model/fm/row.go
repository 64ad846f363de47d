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

package fm

import (
	"time"

	"github.com/gorse-io/suggest/dataset"
)

const (
	ReleaseYear  = "release_year"
	ReleaseMonth = "release_month"
	ReleaseDay   = "release_day"
)

// Columns names the reserved columns of the merged rating table.
type Columns struct {
	User        string
	Item        string
	Timestamp   string
	Title       string
	ReleaseDate string
}

func DefaultColumns() Columns {
	return Columns{
		User:        "user_id",
		Item:        "item_id",
		Timestamp:   "rating_date",
		Title:       "title",
		ReleaseDate: "release_date",
	}
}

// FeatureRow is an ordered set of named fields describing a (user, item) pair.
type FeatureRow []dataset.Field

// Set replaces the field with the same name or appends it.
func (row FeatureRow) Set(field dataset.Field) FeatureRow {
	for i := range row {
		if row[i].Name == field.Name {
			row[i] = field
			return row
		}
	}
	return append(row, field)
}

// Get returns the field with the given name.
func (row FeatureRow) Get(name string) (dataset.Field, bool) {
	for _, field := range row {
		if field.Name == name {
			return field, true
		}
	}
	return dataset.Field{}, false
}

// Numeric drops date and text fields, leaving what the model can consume.
func (row FeatureRow) Numeric() FeatureRow {
	numeric := make(FeatureRow, 0, len(row))
	for _, field := range row {
		if field.Kind == dataset.Numerical || field.Kind == dataset.Categorical {
			numeric = append(numeric, field)
		}
	}
	return numeric
}

// HistoryRow turns a rating record into a feature row. The user and item ids
// are categorical; the release date is expanded into year, month and day,
// which are 0 when the date is unknown.
func HistoryRow(record dataset.Record, columns Columns) FeatureRow {
	row := make(FeatureRow, 0, len(record.UserFields)+len(record.ItemFields)+8)
	row = append(row,
		dataset.CategoricalField(columns.User, record.UserId),
		dataset.CategoricalField(columns.Item, record.ItemId),
		dataset.DateField(columns.Timestamp, record.Timestamp),
		dataset.TextField(columns.Title, record.Title),
	)
	row = append(row, record.UserFields...)
	row = append(row, record.ItemFields...)
	return setReleaseDate(row, record.ReleaseDate, columns)
}

// CandidateRow builds the row scoring item for the user of history. User
// fields come from the historical row; the item id, title, release date and
// every item field are taken from the candidate profile.
func CandidateRow(history dataset.Record, item dataset.ItemProfile, columns Columns) FeatureRow {
	row := HistoryRow(history, columns)
	row = row.Set(dataset.CategoricalField(columns.Item, item.ItemId))
	row = row.Set(dataset.TextField(columns.Title, item.Title))
	for _, field := range item.Fields {
		row = row.Set(field)
	}
	return setReleaseDate(row, item.ReleaseDate, columns)
}

func setReleaseDate(row FeatureRow, date time.Time, columns Columns) FeatureRow {
	var year, month, day float64
	if !date.IsZero() {
		year, month, day = float64(date.Year()), float64(date.Month()), float64(date.Day())
	}
	row = row.Set(dataset.DateField(columns.ReleaseDate, date))
	row = row.Set(dataset.NumericalField(ReleaseYear, year))
	row = row.Set(dataset.NumericalField(ReleaseMonth, month))
	return row.Set(dataset.NumericalField(ReleaseDay, day))
}
