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
	"slices"

	"github.com/chewxy/math32"
	"go.uber.org/zap"
)

type Score struct {
	RMSE float32
}

func (score Score) ZapFields() []zap.Field {
	return []zap.Field{zap.Float32("RMSE", score.RMSE)}
}

func (score Score) BetterThan(s Score) bool {
	return score.RMSE < s.RMSE
}

// EvaluateRegression computes the root mean squared error of clamped
// predictions on a dataset. An empty dataset scores 0.
func EvaluateRegression(fm *FM, set *encodedSet) Score {
	if set.Count() == 0 {
		return Score{RMSE: 0}
	}
	sum := float32(0)
	for i := 0; i < set.Count(); i++ {
		features, values, target := set.Get(i)
		prediction := fm.InternalPredict(features, values)
		sum += (target - prediction) * (target - prediction)
	}
	return Score{RMSE: math32.Sqrt(sum / float32(set.Count()))}
}

type snapshot struct {
	V [][]float32
	W []float32
	B float32
}

// SnapshotManger keeps a copy of the best weights seen so far.
type SnapshotManger struct {
	best      *snapshot
	BestScore Score
}

func (sm *SnapshotManger) AddSnapshot(score Score, v [][]float32, w []float32, b float32) bool {
	if sm.best != nil && !score.BetterThan(sm.BestScore) {
		return false
	}
	copied := &snapshot{V: make([][]float32, len(v)), W: slices.Clone(w), B: b}
	for i := range v {
		copied.V[i] = slices.Clone(v[i])
	}
	sm.best = copied
	sm.BestScore = score
	return true
}

// earlyStopper stops training after patience evaluations without improvement.
type earlyStopper struct {
	patience int
	bad      int
}

func (stopper *earlyStopper) Update(improved bool) (stop bool) {
	if improved {
		stopper.bad = 0
		return false
	}
	stopper.bad++
	return stopper.patience > 0 && stopper.bad >= stopper.patience
}
