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

package engine

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/gorse-io/suggest/config"
	"github.com/gorse-io/suggest/storage"
)

// snapshotOf fingerprints the loaded data together with the settings that
// change which items are ranked and how they are scored.
func snapshotOf(cfg *config.Config, data *storage.Data) string {
	digest := xxhash.New()
	for _, record := range data.Records {
		_, _ = fmt.Fprintf(digest, "%v\n", record)
	}
	for _, item := range data.Items {
		_, _ = fmt.Fprintf(digest, "%v\n", item)
	}
	_, _ = fmt.Fprintf(digest, "%q\n%+v\n", cfg.Recommend.ItemFilter, cfg.Model)
	return strconv.FormatUint(digest.Sum64(), 16)
}
