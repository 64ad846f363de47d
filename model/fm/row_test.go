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
	"testing"
	"time"

	"github.com/gorse-io/suggest/dataset"
	"github.com/stretchr/testify/assert"
)

func TestHistoryRow(t *testing.T) {
	record := dataset.Record{
		UserId:      "1",
		ItemId:      "10",
		Rating:      4,
		Timestamp:   time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC),
		Title:       "Toy Story",
		ReleaseDate: time.Date(1995, 11, 22, 0, 0, 0, 0, time.UTC),
		UserFields:  []dataset.Field{dataset.NumericalField("age", 24)},
		ItemFields:  []dataset.Field{dataset.NumericalField("Animation", 1)},
	}
	row := HistoryRow(record, testColumns())
	field, ok := row.Get("movie_id")
	assert.True(t, ok)
	assert.Equal(t, dataset.CategoricalField("movie_id", "10"), field)
	field, _ = row.Get(ReleaseYear)
	assert.Equal(t, 1995.0, field.Value)
	field, _ = row.Get(ReleaseMonth)
	assert.Equal(t, 11.0, field.Value)
	field, _ = row.Get(ReleaseDay)
	assert.Equal(t, 22.0, field.Value)

	assert.Equal(t, []string{"Animation", "age", "movie_id", ReleaseDay, ReleaseMonth, ReleaseYear, "user_id"},
		SchemaOf(row).Names())

	// unknown release date
	record.ReleaseDate = time.Time{}
	field, _ = HistoryRow(record, testColumns()).Get(ReleaseYear)
	assert.Zero(t, field.Value)
}

func TestCandidateRow(t *testing.T) {
	history := dataset.Record{
		UserId:      "1",
		ItemId:      "10",
		Title:       "Toy Story",
		ReleaseDate: time.Date(1995, 11, 22, 0, 0, 0, 0, time.UTC),
		UserFields:  []dataset.Field{dataset.NumericalField("age", 24)},
		ItemFields: []dataset.Field{
			dataset.NumericalField("Animation", 1),
			dataset.NumericalField("Horror", 0),
		},
	}
	item := dataset.ItemProfile{
		ItemId:      "20",
		Title:       "Scream",
		ReleaseDate: time.Date(1996, 12, 20, 0, 0, 0, 0, time.UTC),
		Fields: []dataset.Field{
			dataset.NumericalField("Animation", 0),
			dataset.NumericalField("Horror", 1),
		},
	}
	row := CandidateRow(history, item, testColumns())
	assert.Equal(t, SchemaOf(HistoryRow(history, testColumns())), SchemaOf(row))
	field, _ := row.Get("movie_id")
	assert.Equal(t, "20", field.Label)
	field, _ = row.Get("user_id")
	assert.Equal(t, "1", field.Label)
	field, _ = row.Get("Horror")
	assert.Equal(t, 1.0, field.Value)
	field, _ = row.Get("age")
	assert.Equal(t, 24.0, field.Value)
	field, _ = row.Get("title")
	assert.Equal(t, "Scream", field.Label)
	field, _ = row.Get(ReleaseYear)
	assert.Equal(t, 1996.0, field.Value)
	// history is untouched
	assert.Equal(t, 1.0, history.ItemFields[0].Value)
}

func TestFeatureMismatchError(t *testing.T) {
	schema := Schema{{Name: "a", Kind: dataset.Numerical}, {Name: "b", Kind: dataset.Categorical}}
	assert.NoError(t, schema.Check(FeatureRow{
		dataset.CategoricalField("b", "x"),
		dataset.NumericalField("a", 1),
		dataset.DateField("when", time.Now()),
	}))
	err := schema.Check(FeatureRow{
		dataset.NumericalField("b", 1),
		dataset.NumericalField("c", 1),
	})
	assert.Equal(t, &FeatureMismatchError{
		Missing:      []string{"a"},
		Unexpected:   []string{"c"},
		KindMismatch: []string{"b"},
	}, err)
	assert.Equal(t, "feature mismatch: missing [a], unexpected [c], kind mismatch [b]", err.Error())
}

func TestEncoder(t *testing.T) {
	rows := []FeatureRow{
		{dataset.CategoricalField("user", "1"), dataset.NumericalField("age", 10), dataset.NumericalField("flag", 1)},
		{dataset.CategoricalField("user", "2"), dataset.NumericalField("age", 30), dataset.NumericalField("flag", 1)},
	}
	encoder, err := NewEncoder(rows)
	assert.NoError(t, err)
	assert.Equal(t, 4, encoder.Count())

	indices, values, err := encoder.Encode(FeatureRow{
		dataset.CategoricalField("user", "2"), dataset.NumericalField("age", 40), dataset.NumericalField("flag", 1),
	})
	assert.NoError(t, err)
	// constant flag is dropped
	assert.Len(t, indices, 2)
	assert.Equal(t, []float32{1, 2}, values)

	// unseen label
	indices, _, err = encoder.Encode(FeatureRow{
		dataset.CategoricalField("user", "3"), dataset.NumericalField("age", 20), dataset.NumericalField("flag", 0),
	})
	assert.NoError(t, err)
	assert.Len(t, indices, 1)

	_, err = NewEncoder([]FeatureRow{rows[0], {dataset.CategoricalField("user", "1")}})
	assert.Error(t, err)
	_, err = NewEncoder(nil)
	assert.Error(t, err)
}
