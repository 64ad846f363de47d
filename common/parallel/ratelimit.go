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

package parallel

import (
	"time"

	"github.com/juju/ratelimit"
)

// RateLimiter hands out tokens without blocking.
type RateLimiter interface {
	TakeAvailable(count int64) int64
}

// NewRateLimiter returns a token bucket refilled with perSecond tokens every
// second. A non-positive rate never limits.
func NewRateLimiter(perSecond int) RateLimiter {
	if perSecond <= 0 {
		return &Unlimited{}
	}
	return ratelimit.NewBucketWithQuantum(time.Second, int64(perSecond), int64(perSecond))
}

type Unlimited struct{}

func (n *Unlimited) TakeAvailable(count int64) int64 {
	return count
}
