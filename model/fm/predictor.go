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
	"context"

	"github.com/gorse-io/suggest/dataset"
	"github.com/juju/errors"
)

// Predictor scores (user, item) pairs with a fitted model. A user is
// described by their first rating record; an item by its catalog profile, or
// by the first record rating it when the catalog lacks it.
type Predictor struct {
	model   *FM
	columns Columns
	history map[string]dataset.Record
	items   map[string]dataset.ItemProfile
}

func NewPredictor(model *FM, records []dataset.Record, catalog *dataset.Catalog, columns Columns) *Predictor {
	p := &Predictor{
		model:   model,
		columns: columns,
		history: make(map[string]dataset.Record),
		items:   make(map[string]dataset.ItemProfile),
	}
	for _, record := range records {
		if _, exist := p.history[record.UserId]; !exist {
			p.history[record.UserId] = record
		}
		if _, exist := p.items[record.ItemId]; !exist {
			p.items[record.ItemId] = dataset.ItemProfile{
				ItemId:      record.ItemId,
				Title:       record.Title,
				ReleaseDate: record.ReleaseDate,
				Fields:      record.ItemFields,
			}
		}
	}
	if catalog != nil {
		for _, item := range catalog.Items() {
			p.items[item.ItemId] = item
		}
	}
	return p
}

// Predict returns false when the user has no history or the item has no
// profile.
func (p *Predictor) Predict(ctx context.Context, userId, itemId string) (float64, bool, error) {
	scores, defined, err := p.PredictBatch(ctx, userId, []string{itemId})
	if err != nil {
		return 0, false, errors.Trace(err)
	}
	return scores[0], defined[0], nil
}

// PredictBatch scores several items for one user in a single model call.
func (p *Predictor) PredictBatch(ctx context.Context, userId string, itemIds []string) ([]float64, []bool, error) {
	scores := make([]float64, len(itemIds))
	defined := make([]bool, len(itemIds))
	history, ok := p.history[userId]
	if !ok {
		return scores, defined, nil
	}
	var rows []FeatureRow
	var positions []int
	for i, itemId := range itemIds {
		item, exist := p.items[itemId]
		if !exist {
			continue
		}
		rows = append(rows, CandidateRow(history, item, p.columns))
		positions = append(positions, i)
	}
	if len(rows) == 0 {
		return scores, defined, nil
	}
	batch, err := p.model.ScoreBatch(ctx, rows)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	for i, pos := range positions {
		scores[pos] = batch[i]
		defined[pos] = true
	}
	return scores, defined, nil
}
