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
	"sync"

	"github.com/gorse-io/suggest/dataset"
	"go.uber.org/atomic"
)

type userPair struct {
	a, b int32
}

func newUserPair(u, v int32) userPair {
	if u > v {
		u, v = v, u
	}
	return userPair{a: u, b: v}
}

type cachedSimilarity struct {
	value   float64
	defined bool
}

// SimilarityCache memoizes user similarities of one rating matrix. It is keyed
// by the unordered pair of dense user indices, so it must not outlive the
// matrix it was created for. Safe for concurrent use.
type SimilarityCache struct {
	matrix *dataset.RatingMatrix
	values sync.Map
	hits   atomic.Int64
	misses atomic.Int64
}

func NewSimilarityCache(matrix *dataset.RatingMatrix) *SimilarityCache {
	return &SimilarityCache{matrix: matrix}
}

// Get returns the similarity between dense users u and v.
func (c *SimilarityCache) Get(u, v int32) (float64, bool) {
	key := newUserPair(u, v)
	if cached, ok := c.values.Load(key); ok {
		c.hits.Inc()
		s := cached.(cachedSimilarity)
		return s.value, s.defined
	}
	c.misses.Inc()
	value, defined := Similarity(c.matrix.UserVector(u), c.matrix.UserVector(v))
	c.values.Store(key, cachedSimilarity{value: value, defined: defined})
	return value, defined
}

func (c *SimilarityCache) Hits() int64 {
	return c.hits.Load()
}

func (c *SimilarityCache) Misses() int64 {
	return c.misses.Load()
}
