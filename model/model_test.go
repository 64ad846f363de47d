// Copyright 2020 gorse Project Authors
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

package model

import (
	"slices"
	"sort"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestBaseModel(t *testing.T) {
	var a, b BaseModel
	a.SetParams(Params{RandomState: 42})
	b.SetParams(Params{RandomState: 42})
	assert.Equal(t, Params{RandomState: 42}, a.GetParams())
	assert.Equal(t, a.GetRandomGenerator().NormalMatrix(3, 4, 0, 0.01),
		b.GetRandomGenerator().NormalMatrix(3, 4, 0, 0.01))
}

func TestRandomGenerator_NormalMatrix(t *testing.T) {
	rng := NewRandomGenerator(0)
	m := rng.NormalMatrix(100, 100, 1, 0)
	for _, row := range m {
		assert.Len(t, row, 100)
		for _, v := range row {
			assert.Equal(t, float32(1), v)
		}
	}
}

func TestRandomGenerator_Split(t *testing.T) {
	rng := NewRandomGenerator(42)
	train, test := rng.Split(10, 0.2)
	assert.Len(t, train, 8)
	assert.Len(t, test, 2)
	all := append(slices.Clone(train), test...)
	sort.Ints(all)
	assert.Equal(t, lo.Range(10), all)

	// same seed, same split
	train2, test2 := NewRandomGenerator(42).Split(10, 0.2)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	train, test = rng.Split(3, 0)
	assert.Len(t, train, 3)
	assert.Empty(t, test)
}
