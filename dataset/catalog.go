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
	"strings"

	"github.com/juju/errors"
)

// Catalog is the read-only item metadata table.
type Catalog struct {
	items []ItemProfile
	index map[string]int
}

// NewCatalog indexes item profiles by id. Empty item ids are rejected; a
// repeated id keeps its first profile.
func NewCatalog(items []ItemProfile) (*Catalog, error) {
	c := &Catalog{
		items: make([]ItemProfile, 0, len(items)),
		index: make(map[string]int, len(items)),
	}
	for _, item := range items {
		if strings.TrimSpace(item.ItemId) == "" {
			return nil, errors.NotValidf("empty item id in item table")
		}
		if _, exist := c.index[item.ItemId]; exist {
			continue
		}
		c.index[item.ItemId] = len(c.items)
		c.items = append(c.items, item)
	}
	return c, nil
}

func (c *Catalog) Len() int {
	return len(c.items)
}

// Get returns the profile of an item.
func (c *Catalog) Get(itemId string) (ItemProfile, bool) {
	if i, ok := c.index[itemId]; ok {
		return c.items[i], true
	}
	return ItemProfile{}, false
}

// Title returns the display title of an item.
func (c *Catalog) Title(itemId string) (string, bool) {
	item, ok := c.Get(itemId)
	if !ok || item.Title == "" {
		return "", false
	}
	return item.Title, true
}

// Items returns profiles in table order. The slice must not be modified.
func (c *Catalog) Items() []ItemProfile {
	return c.items
}
