// Copyright 2021 gorse Project Authors
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

package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Local is an in-process cache.
type Local struct {
	cache *ttlcache.Cache[string, []byte]
}

func NewLocal() *Local {
	c := ttlcache.New[string, []byte](ttlcache.WithDisableTouchOnHit[string, []byte]())
	go c.Start()
	return &Local{cache: c}
}

func (l *Local) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := l.cache.Get(key)
	if item == nil || item.IsExpired() {
		Misses.Inc()
		return nil, false, nil
	}
	Hits.Inc()
	return item.Value(), true, nil
}

func (l *Local) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	l.cache.Set(key, value, ttl)
	return nil
}

// Close stops the expiration loop.
func (l *Local) Close() error {
	l.cache.Stop()
	return nil
}
