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

package dataset

import (
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/juju/errors"
)

// Vector is a rating vector over the item space of a RatingMatrix. A cell is
// present only if its bit is set in the mask; the value of an absent cell is
// meaningless, so 0 never stands for "not rated".
type Vector struct {
	values []float64
	mask   *bitset.BitSet
}

// NewVector copies values into a vector. present[i] reports whether values[i]
// is a rating.
func NewVector(values []float64, present []bool) Vector {
	if len(values) != len(present) {
		panic("dataset: values and presence lengths do not match")
	}
	v := Vector{
		values: make([]float64, len(values)),
		mask:   bitset.New(uint(len(values))),
	}
	for i := range values {
		if present[i] {
			v.values[i] = values[i]
			v.mask.Set(uint(i))
		}
	}
	return v
}

// Len returns the dimension of the vector.
func (v Vector) Len() int {
	return len(v.values)
}

// Count returns the number of present cells.
func (v Vector) Count() int {
	if v.mask == nil {
		return 0
	}
	return int(v.mask.Count())
}

// Get returns the rating at position i and whether it is present.
func (v Vector) Get(i int) (float64, bool) {
	if i < 0 || i >= len(v.values) || !v.mask.Test(uint(i)) {
		return 0, false
	}
	return v.values[i], true
}

// Mask returns a copy of the presence bitmap.
func (v Vector) Mask() *bitset.BitSet {
	if v.mask == nil {
		return bitset.New(0)
	}
	return v.mask.Clone()
}

// CoRated returns the positions present in both vectors.
func (v Vector) CoRated(u Vector) *bitset.BitSet {
	if v.mask == nil || u.mask == nil {
		return bitset.New(0)
	}
	return v.mask.Intersection(u.mask)
}

// At returns the value at a position known to be present.
func (v Vector) At(i uint) float64 {
	return v.values[i]
}

// RatingMatrix is an immutable user by item rating table built from records.
// Users and items are indexed in order of first appearance.
type RatingMatrix struct {
	users  *FreqDict
	items  *FreqDict
	rows   []Vector
	raters [][]int32
}

// NewRatingMatrix builds a matrix from records. It fails with MissingDataError on
// an empty record set and with a NotValid error on duplicated (user, item) pairs
// or non-finite ratings. The records are not retained.
func NewRatingMatrix(records []Record) (*RatingMatrix, error) {
	if len(records) == 0 {
		return nil, NewMissingDataError("rating records")
	}
	m := &RatingMatrix{
		users: NewFreqDict(),
		items: NewFreqDict(),
	}
	userIndices := make([]int32, len(records))
	itemIndices := make([]int32, len(records))
	for i, record := range records {
		if math.IsNaN(record.Rating) || math.IsInf(record.Rating, 0) {
			return nil, errors.NotValidf("rating %v of user %s for item %s", record.Rating, record.UserId, record.ItemId)
		}
		userIndices[i] = m.users.Add(record.UserId)
		itemIndices[i] = m.items.Add(record.ItemId)
	}
	nItems := m.items.Count()
	m.rows = make([]Vector, m.users.Count())
	for u := range m.rows {
		m.rows[u] = Vector{values: make([]float64, nItems), mask: bitset.New(uint(nItems))}
	}
	m.raters = make([][]int32, nItems)
	for i, record := range records {
		u, j := userIndices[i], itemIndices[i]
		row := m.rows[u]
		if row.mask.Test(uint(j)) {
			return nil, errors.NotValidf("duplicated rating of user %s for item %s", record.UserId, record.ItemId)
		}
		row.values[j] = record.Rating
		row.mask.Set(uint(j))
	}
	// raters are listed in ascending user index
	for u, row := range m.rows {
		for j, ok := row.mask.NextSet(0); ok; j, ok = row.mask.NextSet(j + 1) {
			m.raters[j] = append(m.raters[j], int32(u))
		}
	}
	return m, nil
}

func (m *RatingMatrix) Users() *FreqDict {
	return m.users
}

func (m *RatingMatrix) Items() *FreqDict {
	return m.items
}

func (m *RatingMatrix) CountUsers() int {
	return m.users.Count()
}

func (m *RatingMatrix) CountItems() int {
	return m.items.Count()
}

// Get returns the rating of a user for an item, or false if absent.
func (m *RatingMatrix) Get(userId, itemId string) (float64, bool) {
	u, j := m.users.Id(userId), m.items.Id(itemId)
	if u == NotId || j == NotId {
		return 0, false
	}
	return m.rows[u].Get(int(j))
}

// Vector returns the full rating vector of a user over the item space.
func (m *RatingMatrix) Vector(userId string) (Vector, bool) {
	u := m.users.Id(userId)
	if u == NotId {
		return Vector{}, false
	}
	return m.rows[u], true
}

// UserVector returns the rating vector of a dense user index.
func (m *RatingMatrix) UserVector(u int32) Vector {
	return m.rows[u]
}

// Raters returns dense indices of the users who rated a dense item index, in
// ascending order. The slice must not be modified.
func (m *RatingMatrix) Raters(j int32) []int32 {
	return m.raters[j]
}

// RatedItems returns ids of items rated by a user in item index order.
func (m *RatingMatrix) RatedItems(userId string) []string {
	row, ok := m.Vector(userId)
	if !ok {
		return nil
	}
	items := make([]string, 0, row.Count())
	for j, ok := row.mask.NextSet(0); ok; j, ok = row.mask.NextSet(j + 1) {
		items = append(items, m.items.Names()[j])
	}
	return items
}

// ValidateRatings checks that every rating lies in [minRating, maxRating].
func ValidateRatings(records []Record, minRating, maxRating float64) error {
	for _, record := range records {
		if record.Rating < minRating || record.Rating > maxRating {
			return errors.NotValidf("rating %v of user %s for item %s out of [%v, %v]",
				record.Rating, record.UserId, record.ItemId, minRating, maxRating)
		}
	}
	return nil
}
