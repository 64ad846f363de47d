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
	"math/rand"
)

// Tracker receives training progress.
type Tracker interface {
	Start(total int)
	Update(done int)
	Finish()
}

// BaseModel must be included by every trainable model. Hyper-parameters and the
// seeded random generator are managed by the BaseModel.
type BaseModel struct {
	Params    Params          // Hyper-parameters
	rng       RandomGenerator // Random generator
	randState int64           // Random seed
}

// SetParams sets hyper-parameters for the BaseModel model.
func (model *BaseModel) SetParams(params Params) {
	model.Params = params
	model.randState = model.Params.GetInt64(RandomState, 0)
	model.rng = NewRandomGenerator(model.randState)
}

// GetParams returns all hyper-parameters.
func (model *BaseModel) GetParams() Params {
	return model.Params
}

func (model *BaseModel) GetRandomGenerator() RandomGenerator {
	return model.rng
}

// RandomGenerator is a seeded source of randomness. It is not safe for
// concurrent use.
type RandomGenerator struct {
	*rand.Rand
}

// NewRandomGenerator creates a RandomGenerator.
func NewRandomGenerator(seed int64) RandomGenerator {
	return RandomGenerator{rand.New(rand.NewSource(seed))}
}

// NormalVector makes a vector filled with normal random floats.
func (rng RandomGenerator) NormalVector(size int, mean, stdDev float32) []float32 {
	ret := make([]float32, size)
	for i := 0; i < len(ret); i++ {
		ret[i] = float32(rng.NormFloat64())*stdDev + mean
	}
	return ret
}

// NormalMatrix makes a matrix filled with normal random floats.
func (rng RandomGenerator) NormalMatrix(row, col int, mean, stdDev float32) [][]float32 {
	ret := make([][]float32, row)
	for i := range ret {
		ret[i] = rng.NormalVector(col, mean, stdDev)
	}
	return ret
}

// Split shuffles [0, n) and cuts it into a train part and a test part holding
// round(n * testRatio) indices.
func (rng RandomGenerator) Split(n int, testRatio float64) (train, test []int) {
	perm := rng.Perm(n)
	nTest := int(float64(n)*testRatio + 0.5)
	if nTest > n {
		nTest = n
	}
	return perm[nTest:], perm[:nTest]
}
