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

	"github.com/gorse-io/suggest/dataset"
)

// Similarity computes the cosine similarity between two rating vectors over
// the items both of them rated. Ratings are not mean-centered. The second
// return is false if there is no co-rated item or either restricted vector has
// zero norm.
func Similarity(a, b dataset.Vector) (float64, bool) {
	mask := a.CoRated(b)
	m, n, l := .0, .0, .0
	for i, ok := mask.NextSet(0); ok; i, ok = mask.NextSet(i + 1) {
		x, y := a.At(i), b.At(i)
		m += x * x
		n += y * y
		l += x * y
	}
	if m == 0 || n == 0 {
		return 0, false
	}
	sim := l / (math.Sqrt(m) * math.Sqrt(n))
	// rounding may push |sim| slightly above 1
	return math.Max(-1, math.Min(1, sim)), true
}
