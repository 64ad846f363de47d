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

package logics

import (
	"context"

	"github.com/gorse-io/suggest/model/fm"
	"github.com/gorse-io/suggest/model/knn"
	"github.com/juju/errors"
)

const (
	NeighborhoodStrategy = "neighborhood"
	ModelStrategy        = "model"
)

// Predictor estimates the rating a user would give an item. The boolean is
// false when no estimate can be made.
type Predictor interface {
	Predict(ctx context.Context, userId, itemId string) (float64, bool, error)
}

type Neighborhood struct {
	predictor *knn.Predictor
	session   *knn.Session
}

// NewNeighborhood wraps a neighborhood predictor. With cache enabled, pair
// similarities are computed once for the lifetime of the returned value.
func NewNeighborhood(predictor *knn.Predictor, cache bool) *Neighborhood {
	n := &Neighborhood{predictor: predictor}
	if cache {
		n.session = predictor.Session()
	}
	return n
}

func (n *Neighborhood) Predict(_ context.Context, userId, itemId string) (float64, bool, error) {
	if n.session != nil {
		score, ok := n.session.Predict(userId, itemId)
		return score, ok, nil
	}
	score, ok := n.predictor.Predict(userId, itemId)
	return score, ok, nil
}

// Session exposes the similarity cache, nil when caching is disabled.
func (n *Neighborhood) Session() *knn.Session {
	return n.session
}

type Model struct {
	predictor *fm.Predictor
}

func NewModel(predictor *fm.Predictor) *Model {
	return &Model{predictor: predictor}
}

func (m *Model) Predict(ctx context.Context, userId, itemId string) (float64, bool, error) {
	return m.predictor.Predict(ctx, userId, itemId)
}

// ParseStrategy checks a strategy name. The empty name selects the
// neighborhood strategy.
func ParseStrategy(name string) (string, error) {
	switch name {
	case "", NeighborhoodStrategy:
		return NeighborhoodStrategy, nil
	case ModelStrategy:
		return ModelStrategy, nil
	}
	return "", errors.NotValidf("strategy %q", name)
}
