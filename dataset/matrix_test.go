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
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func scenarioRecords() []Record {
	return []Record{
		{UserId: "1", ItemId: "1", Rating: 5},
		{UserId: "1", ItemId: "2", Rating: 3},
		{UserId: "2", ItemId: "1", Rating: 4},
		{UserId: "2", ItemId: "2", Rating: 2},
		{UserId: "3", ItemId: "1", Rating: 1},
	}
}

func TestNewRatingMatrix(t *testing.T) {
	m, err := NewRatingMatrix(scenarioRecords())
	assert.NoError(t, err)
	assert.Equal(t, 3, m.CountUsers())
	assert.Equal(t, 2, m.CountItems())

	rating, ok := m.Get("1", "2")
	assert.True(t, ok)
	assert.Equal(t, 3.0, rating)
	_, ok = m.Get("3", "2")
	assert.False(t, ok)
	_, ok = m.Get("4", "1")
	assert.False(t, ok)
	_, ok = m.Get("1", "9")
	assert.False(t, ok)

	v, ok := m.Vector("3")
	assert.True(t, ok)
	assert.Equal(t, 2, v.Len())
	assert.Equal(t, 1, v.Count())
	rating, ok = v.Get(0)
	assert.True(t, ok)
	assert.Equal(t, 1.0, rating)
	_, ok = v.Get(1)
	assert.False(t, ok)
	_, ok = m.Vector("4")
	assert.False(t, ok)

	assert.Equal(t, []int32{0, 1, 2}, m.Raters(0))
	assert.Equal(t, []int32{0, 1}, m.Raters(1))
	assert.Equal(t, []string{"1", "2"}, m.RatedItems("1"))
	assert.Equal(t, []string{"1"}, m.RatedItems("3"))
	assert.Empty(t, m.RatedItems("4"))
}

func TestRatingMatrixZeroIsARating(t *testing.T) {
	m, err := NewRatingMatrix([]Record{
		{UserId: "a", ItemId: "x", Rating: 0},
		{UserId: "b", ItemId: "y", Rating: 1},
	})
	assert.NoError(t, err)
	rating, ok := m.Get("a", "x")
	assert.True(t, ok)
	assert.Zero(t, rating)
	_, ok = m.Get("a", "y")
	assert.False(t, ok)
}

func TestRatingMatrixErrors(t *testing.T) {
	_, err := NewRatingMatrix(nil)
	var missing *MissingDataError
	assert.True(t, errors.As(err, &missing))
	assert.Equal(t, "missing data: rating records", err.Error())

	_, err = NewRatingMatrix([]Record{
		{UserId: "a", ItemId: "x", Rating: 1},
		{UserId: "a", ItemId: "x", Rating: 2},
	})
	assert.True(t, errors.Is(err, errors.NotValid))

	_, err = NewRatingMatrix([]Record{{UserId: "a", ItemId: "x", Rating: math.NaN()}})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestRatingMatrixDeterministic(t *testing.T) {
	records := scenarioRecords()
	a, err := NewRatingMatrix(records)
	assert.NoError(t, err)
	b, err := NewRatingMatrix(records)
	assert.NoError(t, err)
	assert.Equal(t, a.Users().Names(), b.Users().Names())
	assert.Equal(t, a.Items().Names(), b.Items().Names())
	for _, userId := range a.Users().Names() {
		va, _ := a.Vector(userId)
		vb, _ := b.Vector(userId)
		assert.True(t, va.Mask().Equal(vb.Mask()))
		for j := 0; j < va.Len(); j++ {
			ra, oka := va.Get(j)
			rb, okb := vb.Get(j)
			assert.Equal(t, oka, okb)
			assert.Equal(t, ra, rb)
		}
	}
	// building does not alias the caller's records
	records[0].Rating = 1
	rating, _ := a.Get("1", "1")
	assert.Equal(t, 5.0, rating)
}

func TestNewVector(t *testing.T) {
	v := NewVector([]float64{5, 0, 3}, []bool{true, false, true})
	assert.Equal(t, 3, v.Len())
	assert.Equal(t, 2, v.Count())
	_, ok := v.Get(1)
	assert.False(t, ok)
	u := NewVector([]float64{1, 1, 0}, []bool{true, true, false})
	assert.Equal(t, uint(1), v.CoRated(u).Count())
	assert.Panics(t, func() { NewVector([]float64{1}, nil) })
	assert.Zero(t, Vector{}.Count())
	_, ok = Vector{}.Get(0)
	assert.False(t, ok)
}

func TestValidateRatings(t *testing.T) {
	assert.NoError(t, ValidateRatings(scenarioRecords(), 1, 5))
	err := ValidateRatings([]Record{{UserId: "a", ItemId: "x", Rating: 6}}, 1, 5)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestCatalog(t *testing.T) {
	catalog, err := NewCatalog([]ItemProfile{
		{ItemId: "1", Title: "Toy Story"},
		{ItemId: "2"},
		{ItemId: "1", Title: "Duplicate"},
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, catalog.Len())
	title, ok := catalog.Title("1")
	assert.True(t, ok)
	assert.Equal(t, "Toy Story", title)
	_, ok = catalog.Title("2")
	assert.False(t, ok)
	_, ok = catalog.Title("3")
	assert.False(t, ok)
	_, err = NewCatalog([]ItemProfile{{ItemId: " "}})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "numerical", Numerical.String())
	assert.Equal(t, "categorical", Categorical.String())
	assert.Equal(t, "date", Date.String())
	assert.Equal(t, "text", Text.String())
}
