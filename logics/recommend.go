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
	"fmt"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/suggest/base/log"
	"github.com/gorse-io/suggest/common/parallel"
	"github.com/gorse-io/suggest/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Recommendation is an entry of a recommendation list.
type Recommendation struct {
	ItemId string  `json:"ItemId"`
	Title  string  `json:"Title"`
	Score  float64 `json:"Score"`
}

// PlaceholderTitle labels items without a known title.
func PlaceholderTitle(itemId string) string {
	return fmt.Sprintf("Item %s", itemId)
}

// Ranker enumerates the items a user has not rated, scores them with a
// Predictor and returns the best ones.
type Ranker struct {
	matrix  *dataset.RatingMatrix
	catalog *dataset.Catalog
	filter  *ItemFilter
	jobs    int
}

func NewRanker(matrix *dataset.RatingMatrix, catalog *dataset.Catalog, filter *ItemFilter, jobs int) *Ranker {
	return &Ranker{
		matrix:  matrix,
		catalog: catalog,
		filter:  filter,
		jobs:    max(jobs, 1),
	}
}

// Candidates returns the items the user has not rated: items of the rating
// matrix in matrix order, then items only known to the catalog.
func (r *Ranker) Candidates(userId string) ([]string, error) {
	if r.matrix == nil {
		return nil, dataset.NewMissingDataError("rating matrix")
	}
	if r.matrix.Users().Id(userId) == dataset.NotId {
		return nil, dataset.NewMissingDataError("user %s", userId)
	}
	rated := mapset.NewThreadUnsafeSet(r.matrix.RatedItems(userId)...)
	seen := mapset.NewThreadUnsafeSet[string]()
	var candidates []string
	push := func(itemId string) {
		if seen.Contains(itemId) {
			return
		}
		seen.Add(itemId)
		if rated.Contains(itemId) {
			return
		}
		if r.filter != nil && !r.filter.Match(r.candidateItem(itemId)) {
			return
		}
		candidates = append(candidates, itemId)
	}
	for _, itemId := range r.matrix.Items().Names() {
		push(itemId)
	}
	if r.catalog != nil {
		for _, item := range r.catalog.Items() {
			push(item.ItemId)
		}
	}
	return candidates, nil
}

func (r *Ranker) candidateItem(itemId string) CandidateItem {
	if r.catalog != nil {
		if profile, ok := r.catalog.Get(itemId); ok {
			return NewCandidateItem(profile)
		}
	}
	return NewCandidateItem(dataset.ItemProfile{ItemId: itemId})
}

// Recommend ranks the unrated items of a user. Undefined predictions are
// dropped, the rest are sorted by score in descending order with ties kept in
// candidate order, and the first n are returned with their titles.
func (r *Ranker) Recommend(ctx context.Context, userId string, predictor Predictor, n int) ([]Recommendation, error) {
	if n <= 0 {
		return nil, errors.NotValidf("number of recommendations %d", n)
	}
	start := time.Now()
	candidates, err := r.Candidates(userId)
	if err != nil {
		return nil, errors.Trace(err)
	}

	scores := make([]float64, len(candidates))
	defined := make([]bool, len(candidates))
	err = parallel.Parallel(ctx, len(candidates), r.jobs, func(_, jobId int) error {
		score, ok, err := predictor.Predict(ctx, userId, candidates[jobId])
		if err != nil {
			return errors.Annotatef(err, "predict item %s", candidates[jobId])
		}
		scores[jobId], defined[jobId] = score, ok
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	type scored struct {
		itemId string
		score  float64
	}
	ranked := make([]scored, 0, len(candidates))
	for i, itemId := range candidates {
		if defined[i] {
			ranked = append(ranked, scored{itemId: itemId, score: scores[i]})
		}
	}
	ScoredCandidatesTotal.Add(float64(len(candidates)))
	UndefinedScoresTotal.Add(float64(len(candidates) - len(ranked)))
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	recommendations := lo.Map(ranked, func(s scored, _ int) Recommendation {
		return Recommendation{ItemId: s.itemId, Title: r.title(s.itemId), Score: s.score}
	})
	RecommendSeconds.Observe(time.Since(start).Seconds())
	log.Logger().Debug("recommend",
		zap.String("user_id", userId),
		zap.Int("candidates", len(candidates)),
		zap.Int("defined", len(scores)-lo.Count(defined, false)),
		zap.Int("n", n))
	return recommendations, nil
}

func (r *Ranker) title(itemId string) string {
	if r.catalog != nil {
		if title, ok := r.catalog.Title(itemId); ok {
			return title
		}
	}
	UnresolvedTitlesTotal.Inc()
	log.Logger().Warn("unknown item title", zap.String("item_id", itemId))
	return PlaceholderTitle(itemId)
}
