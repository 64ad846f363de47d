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
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

const (
	RedisPrefix  = "redis://"
	RedissPrefix = "rediss://"
)

// Cache stores serialized values for a limited time.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Open a cache. An empty URI opens an in-process cache.
func Open(uri string) (Cache, error) {
	if uri == "" {
		return NewLocal(), nil
	}
	if strings.HasPrefix(uri, RedisPrefix) || strings.HasPrefix(uri, RedissPrefix) {
		opt, err := redis.ParseURL(uri)
		if err != nil {
			return nil, errors.Trace(err)
		}
		client := redis.NewClient(opt)
		if err = redisotel.InstrumentTracing(client); err != nil {
			return nil, errors.Trace(err)
		}
		return &Redis{client: client}, nil
	}
	return nil, errors.NotSupportedf("cache %s", uri)
}
