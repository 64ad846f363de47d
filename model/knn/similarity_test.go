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
	"math/rand"
	"testing"

	"github.com/gorse-io/suggest/dataset"
	"github.com/stretchr/testify/assert"
)

func vector(cells ...float64) dataset.Vector {
	present := make([]bool, len(cells))
	for i, c := range cells {
		present[i] = !math.IsNaN(c)
	}
	return dataset.NewVector(cells, present)
}

var na = math.NaN()

func TestSimilarity(t *testing.T) {
	// co-rated subset is {0, 2}
	sim, ok := Similarity(vector(5, 3, 4, na), vector(3, na, 4, 1))
	assert.True(t, ok)
	assert.InDelta(t, (5*3+4*4)/(math.Sqrt(41)*math.Sqrt(25)), sim, 1e-12)

	// not mean-centered
	sim, ok = Similarity(vector(1, 2), vector(2, 4))
	assert.True(t, ok)
	assert.InDelta(t, 1.0, sim, 1e-12)
	sim, ok = Similarity(vector(1, 5), vector(5, 1))
	assert.True(t, ok)
	assert.InDelta(t, 10/26.0, sim, 1e-12)
}

func TestSimilarityUndefined(t *testing.T) {
	// disjoint support
	_, ok := Similarity(vector(5, na, 3, na), vector(na, 4, na, 2))
	assert.False(t, ok)
	// zero norm on the co-rated subset
	_, ok = Similarity(vector(0, 3), vector(4, na))
	assert.False(t, ok)
	// empty vectors
	_, ok = Similarity(dataset.Vector{}, vector(1, 2))
	assert.False(t, ok)
}

func TestSimilaritySelf(t *testing.T) {
	v := vector(5, na, 3, 1, 2)
	sim, ok := Similarity(v, v)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, sim, 1e-12)
}

func TestSimilaritySymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(0))
	random := func() dataset.Vector {
		cells := make([]float64, 20)
		for i := range cells {
			if rng.Float64() < 0.5 {
				cells[i] = na
			} else {
				cells[i] = float64(rng.Intn(5) + 1)
			}
		}
		return vector(cells...)
	}
	for i := 0; i < 100; i++ {
		a, b := random(), random()
		ab, okAB := Similarity(a, b)
		ba, okBA := Similarity(b, a)
		assert.Equal(t, okAB, okBA)
		assert.InDelta(t, ab, ba, 1e-12)
		assert.LessOrEqual(t, ab, 1.0)
		assert.GreaterOrEqual(t, ab, -1.0)
	}
}
