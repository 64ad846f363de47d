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
	"testing"

	"github.com/gorse-io/suggest/dataset"
	"github.com/stretchr/testify/assert"
)

func TestSimilarityCache(t *testing.T) {
	m, err := dataset.NewRatingMatrix([]dataset.Record{
		rating("a", "x", 5), rating("a", "y", 3),
		rating("b", "x", 4), rating("b", "y", 2),
		rating("c", "z", 1),
	})
	assert.NoError(t, err)
	cache := NewSimilarityCache(m)

	expected, _ := Similarity(m.UserVector(0), m.UserVector(1))
	sim, ok := cache.Get(0, 1)
	assert.True(t, ok)
	assert.Equal(t, expected, sim)
	// the pair is unordered
	sim, ok = cache.Get(1, 0)
	assert.True(t, ok)
	assert.Equal(t, expected, sim)
	assert.Equal(t, int64(1), cache.Hits())
	assert.Equal(t, int64(1), cache.Misses())

	// undefined results are cached too
	_, ok = cache.Get(0, 2)
	assert.False(t, ok)
	_, ok = cache.Get(2, 0)
	assert.False(t, ok)
	assert.Equal(t, int64(2), cache.Hits())
	assert.Equal(t, int64(2), cache.Misses())
}

func TestSimilarityCacheConcurrent(t *testing.T) {
	m, err := dataset.NewRatingMatrix([]dataset.Record{
		rating("a", "x", 5), rating("a", "y", 3),
		rating("b", "x", 4), rating("b", "y", 2),
	})
	assert.NoError(t, err)
	cache := NewSimilarityCache(m)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Go(func() {
			for j := 0; j < 100; j++ {
				_, ok := cache.Get(0, 1)
				assert.True(t, ok)
			}
		})
	}
	wg.Wait()
	assert.Equal(t, int64(1600), cache.Hits()+cache.Misses())
}
