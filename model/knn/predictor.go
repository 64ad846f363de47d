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

package knn

import (
	"math"

	"github.com/gorse-io/suggest/common/heap"
	"github.com/gorse-io/suggest/dataset"
	"github.com/juju/errors"
)

// Neighbor is a user who rated the target item, paired with their similarity
// to the target user. Undefined similarities have Defined set to false and
// weigh nothing.
type Neighbor struct {
	UserId     string  `json:"user_id"`
	Similarity float64 `json:"similarity"`
	Defined    bool    `json:"defined"`
	Rating     float64 `json:"rating"`
}

func (n Neighbor) weight() float64 {
	if !n.Defined {
		return 0
	}
	return math.Abs(n.Similarity)
}

// Predictor predicts ratings from the k most similar users who rated the item.
// Every call recomputes the similarities of the target user to all raters of
// the item, costing O(U * I); a Session shares them across calls.
type Predictor struct {
	matrix *dataset.RatingMatrix
	k      int
}

func NewPredictor(matrix *dataset.RatingMatrix, k int) (*Predictor, error) {
	if matrix == nil {
		return nil, dataset.NewMissingDataError("rating matrix")
	}
	if k <= 0 {
		return nil, errors.NotValidf("number of neighbors %d", k)
	}
	return &Predictor{matrix: matrix, k: k}, nil
}

func (p *Predictor) K() int {
	return p.k
}

// Predict returns the predicted rating of a user for an item. The second return
// is false for an unknown item or an item nobody else rated.
func (p *Predictor) Predict(userId, itemId string) (float64, bool) {
	return aggregate(p.neighbors(nil, userId, itemId))
}

// Neighbors returns the retained neighbors for a prediction, ordered by
// decreasing absolute similarity.
func (p *Predictor) Neighbors(userId, itemId string) []Neighbor {
	return p.neighbors(nil, userId, itemId)
}

// Session returns a predictor that memoizes similarities between calls. Use
// one session per ranking request.
func (p *Predictor) Session() *Session {
	return &Session{Predictor: p, cache: NewSimilarityCache(p.matrix)}
}

func (p *Predictor) neighbors(cache *SimilarityCache, userId, itemId string) []Neighbor {
	j := p.matrix.Items().Id(itemId)
	if j == dataset.NotId {
		return nil
	}
	u := p.matrix.Users().Id(userId)
	var target dataset.Vector
	if u != dataset.NotId {
		target = p.matrix.UserVector(u)
	}
	filter := heap.NewTopKFilter[Neighbor, float64](p.k)
	for _, v := range p.matrix.Raters(j) {
		if v == u {
			continue
		}
		neighbor := Neighbor{Rating: p.matrix.UserVector(v).At(uint(j))}
		neighbor.UserId, _ = p.matrix.Users().String(v)
		switch {
		case u == dataset.NotId:
		case cache != nil:
			neighbor.Similarity, neighbor.Defined = cache.Get(u, v)
		default:
			neighbor.Similarity, neighbor.Defined = Similarity(target, p.matrix.UserVector(v))
		}
		filter.Push(neighbor, neighbor.weight())
	}
	return filter.PopAllValues()
}

// aggregate returns the similarity-weighted mean of neighbor ratings, or their
// plain mean if every weight is zero. Weights keep their sign.
func aggregate(neighbors []Neighbor) (float64, bool) {
	if len(neighbors) == 0 {
		return 0, false
	}
	var sumAbs, sumWeighted, sum float64
	for _, n := range neighbors {
		if n.Defined {
			sumAbs += math.Abs(n.Similarity)
			sumWeighted += n.Similarity * n.Rating
		}
		sum += n.Rating
	}
	if sumAbs == 0 {
		return sum / float64(len(neighbors)), true
	}
	return sumWeighted / sumAbs, true
}

// Session is a Predictor bound to a similarity cache.
type Session struct {
	*Predictor
	cache *SimilarityCache
}

func (s *Session) Predict(userId, itemId string) (float64, bool) {
	return aggregate(s.neighbors(s.cache, userId, itemId))
}

func (s *Session) Neighbors(userId, itemId string) []Neighbor {
	return s.neighbors(s.cache, userId, itemId)
}

func (s *Session) Cache() *SimilarityCache {
	return s.cache
}
