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
	"fmt"
	"math"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/suggest/dataset"
	"github.com/juju/errors"
)

// FeatureMismatchError reports a row whose columns differ from the columns
// the model was trained on.
type FeatureMismatchError struct {
	Missing      []string
	Unexpected   []string
	KindMismatch []string
}

func (e *FeatureMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing %v", e.Missing))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected %v", e.Unexpected))
	}
	if len(e.KindMismatch) > 0 {
		parts = append(parts, fmt.Sprintf("kind mismatch %v", e.KindMismatch))
	}
	return "feature mismatch: " + strings.Join(parts, ", ")
}

type Column struct {
	Name string
	Kind dataset.Kind
}

// Schema is the sorted set of numeric and categorical columns of a row.
type Schema []Column

func SchemaOf(row FeatureRow) Schema {
	schema := make(Schema, 0, len(row))
	for _, field := range row.Numeric() {
		schema = append(schema, Column{Name: field.Name, Kind: field.Kind})
	}
	sort.Slice(schema, func(i, j int) bool {
		return schema[i].Name < schema[j].Name
	})
	return schema
}

func (schema Schema) Names() []string {
	names := make([]string, len(schema))
	for i, column := range schema {
		names[i] = column.Name
	}
	return names
}

// Check returns a *FeatureMismatchError if the numeric part of row does not
// have exactly the columns of the schema.
func (schema Schema) Check(row FeatureRow) error {
	expect := make(map[string]dataset.Kind, len(schema))
	for _, column := range schema {
		expect[column.Name] = column.Kind
	}
	seen := mapset.NewThreadUnsafeSet[string]()
	var mismatch FeatureMismatchError
	for _, field := range row.Numeric() {
		seen.Add(field.Name)
		kind, ok := expect[field.Name]
		if !ok {
			mismatch.Unexpected = append(mismatch.Unexpected, field.Name)
		} else if kind != field.Kind {
			mismatch.KindMismatch = append(mismatch.KindMismatch, field.Name)
		}
	}
	for _, column := range schema {
		if !seen.Contains(column.Name) {
			mismatch.Missing = append(mismatch.Missing, column.Name)
		}
	}
	if len(mismatch.Missing) > 0 || len(mismatch.Unexpected) > 0 || len(mismatch.KindMismatch) > 0 {
		sort.Strings(mismatch.Unexpected)
		sort.Strings(mismatch.KindMismatch)
		return &mismatch
	}
	return nil
}

// Encoder maps feature rows to sparse vectors. Categorical columns are one-hot
// encoded as "column=label"; numerical columns are standardized with the
// training mean and standard deviation.
type Encoder struct {
	Schema Schema
	index  *dataset.FreqDict
	mean   map[string]float64
	std    map[string]float64
}

// NewEncoder fits an encoder to training rows. Every row must share the
// columns of the first one.
func NewEncoder(rows []FeatureRow) (*Encoder, error) {
	if len(rows) == 0 {
		return nil, dataset.NewMissingDataError("training rows")
	}
	encoder := &Encoder{
		Schema: SchemaOf(rows[0]),
		index:  dataset.NewFreqDict(),
		mean:   make(map[string]float64),
		std:    make(map[string]float64),
	}
	sum := make(map[string]float64)
	sum2 := make(map[string]float64)
	count := make(map[string]float64)
	for _, row := range rows {
		if err := encoder.Schema.Check(row); err != nil {
			return nil, errors.Trace(err)
		}
		for _, field := range row.Numeric() {
			switch field.Kind {
			case dataset.Categorical:
				encoder.index.Add(field.Name + "=" + field.Label)
			case dataset.Numerical:
				encoder.index.Add(field.Name)
				if !math.IsNaN(field.Value) {
					sum[field.Name] += field.Value
					sum2[field.Name] += field.Value * field.Value
					count[field.Name]++
				}
			}
		}
	}
	for name, n := range count {
		mean := sum[name] / n
		encoder.mean[name] = mean
		encoder.std[name] = math.Sqrt(math.Max(sum2[name]/n-mean*mean, 0))
	}
	return encoder, nil
}

// Count returns the number of encoded features.
func (encoder *Encoder) Count() int {
	return encoder.index.Count()
}

// Encode converts a row into feature indices and values. Categorical labels
// unseen in training, missing numerical values and constant numerical columns
// contribute nothing.
func (encoder *Encoder) Encode(row FeatureRow) ([]int32, []float32, error) {
	if err := encoder.Schema.Check(row); err != nil {
		return nil, nil, errors.Trace(err)
	}
	numeric := row.Numeric()
	indices := make([]int32, 0, len(numeric))
	values := make([]float32, 0, len(numeric))
	for _, field := range numeric {
		switch field.Kind {
		case dataset.Categorical:
			if id := encoder.index.Id(field.Name + "=" + field.Label); id != dataset.NotId {
				indices = append(indices, id)
				values = append(values, 1)
			}
		case dataset.Numerical:
			std := encoder.std[field.Name]
			if std == 0 || math.IsNaN(field.Value) {
				continue
			}
			indices = append(indices, encoder.index.Id(field.Name))
			values = append(values, float32((field.Value-encoder.mean[field.Name])/std))
		}
	}
	return indices, values, nil
}
