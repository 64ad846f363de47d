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

package logics

import (
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/gorse-io/suggest/base/log"
	"github.com/gorse-io/suggest/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// CandidateItem is the view of an item seen by filter expressions.
type CandidateItem struct {
	ItemId      string
	Title       string
	ReleaseDate time.Time
	Features    map[string]float64
	Labels      map[string]string
}

func NewCandidateItem(profile dataset.ItemProfile) CandidateItem {
	item := CandidateItem{
		ItemId:      profile.ItemId,
		Title:       profile.Title,
		ReleaseDate: profile.ReleaseDate,
		Features:    make(map[string]float64),
		Labels:      make(map[string]string),
	}
	for _, field := range profile.Fields {
		switch field.Kind {
		case dataset.Numerical:
			item.Features[field.Name] = field.Value
		case dataset.Categorical, dataset.Text:
			item.Labels[field.Name] = field.Label
		}
	}
	return item
}

// ItemFilter keeps candidates for which a boolean expression holds, e.g.
//
//	item.ReleaseDate.Year() >= 1990 && item.Features["Comedy"] == 1
type ItemFilter struct {
	expression string
	program    *vm.Program
}

// NewItemFilter compiles an expression. An empty expression returns a nil
// filter, which matches every item.
func NewItemFilter(expression string) (*ItemFilter, error) {
	if expression == "" {
		return nil, nil
	}
	program, err := expr.Compile(expression, expr.Env(map[string]any{
		"item": CandidateItem{},
	}), expr.AsBool())
	if err != nil {
		return nil, errors.Annotatef(err, "compile item filter %q", expression)
	}
	return &ItemFilter{expression: expression, program: program}, nil
}

// Match evaluates the filter. Evaluation failures are logged and the item is
// dropped.
func (f *ItemFilter) Match(item CandidateItem) bool {
	if f == nil {
		return true
	}
	result, err := expr.Run(f.program, map[string]any{
		"item": item,
	})
	if err != nil {
		log.Logger().Error("evaluate item filter", zap.String("item_id", item.ItemId), zap.Error(err))
		return false
	}
	return result.(bool)
}

func (f *ItemFilter) String() string {
	if f == nil {
		return ""
	}
	return f.expression
}
