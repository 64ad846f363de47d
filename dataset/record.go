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
	"strconv"
	"time"
)

// Kind classifies a feature column.
type Kind uint8

const (
	Numerical Kind = iota
	Categorical
	Date
	Text
)

func (k Kind) String() string {
	switch k {
	case Numerical:
		return "numerical"
	case Categorical:
		return "categorical"
	case Date:
		return "date"
	case Text:
		return "text"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Field is a named cell of a feature row. Only the member matching Kind is set.
type Field struct {
	Name  string
	Kind  Kind
	Value float64
	Label string
	Time  time.Time
}

func NumericalField(name string, value float64) Field {
	return Field{Name: name, Kind: Numerical, Value: value}
}

func CategoricalField(name, label string) Field {
	return Field{Name: name, Kind: Categorical, Label: label}
}

func DateField(name string, t time.Time) Field {
	return Field{Name: name, Kind: Date, Time: t}
}

func TextField(name, text string) Field {
	return Field{Name: name, Kind: Text, Label: text}
}

// Record is a row of the merged rating table.
type Record struct {
	UserId      string
	ItemId      string
	Rating      float64
	Timestamp   time.Time
	Title       string
	ReleaseDate time.Time
	UserFields  []Field
	ItemFields  []Field
}

// ItemProfile is a row of the item metadata table.
type ItemProfile struct {
	ItemId      string
	Title       string
	ReleaseDate time.Time
	Fields      []Field
}
