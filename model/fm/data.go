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
	"github.com/gorse-io/suggest/dataset"
	"github.com/gorse-io/suggest/model"
	"github.com/juju/errors"
)

// Dataset holds feature rows with their target ratings.
type Dataset struct {
	Rows    []FeatureRow
	Targets []float32
}

// NewDataset converts rating records into history rows.
func NewDataset(records []dataset.Record, columns Columns) *Dataset {
	data := &Dataset{
		Rows:    make([]FeatureRow, len(records)),
		Targets: make([]float32, len(records)),
	}
	for i, record := range records {
		data.Rows[i] = HistoryRow(record, columns)
		data.Targets[i] = float32(record.Rating)
	}
	return data
}

func (data *Dataset) Count() int {
	return len(data.Rows)
}

// Split shuffles the dataset with seed and holds out round(n * ratio) rows
// for validation.
func (data *Dataset) Split(ratio float64, seed int64) (train, valid *Dataset) {
	trainIndex, validIndex := model.NewRandomGenerator(seed).Split(data.Count(), ratio)
	return data.subset(trainIndex), data.subset(validIndex)
}

func (data *Dataset) subset(index []int) *Dataset {
	sub := &Dataset{
		Rows:    make([]FeatureRow, len(index)),
		Targets: make([]float32, len(index)),
	}
	for i, j := range index {
		sub.Rows[i] = data.Rows[j]
		sub.Targets[i] = data.Targets[j]
	}
	return sub
}

// encodedSet is a dataset in sparse vector form.
type encodedSet struct {
	features [][]int32
	values   [][]float32
	targets  []float32
}

func encode(encoder *Encoder, data *Dataset) (*encodedSet, error) {
	set := &encodedSet{
		features: make([][]int32, data.Count()),
		values:   make([][]float32, data.Count()),
		targets:  data.Targets,
	}
	for i, row := range data.Rows {
		var err error
		set.features[i], set.values[i], err = encoder.Encode(row)
		if err != nil {
			return nil, errors.Annotatef(err, "row %d", i)
		}
	}
	return set, nil
}

func (set *encodedSet) Count() int {
	return len(set.targets)
}

func (set *encodedSet) Get(i int) ([]int32, []float32, float32) {
	return set.features[i], set.values[i], set.targets[i]
}
