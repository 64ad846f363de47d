// Copyright 2022 gorse Project Authors
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

package main

import (
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// progressTracker draws training epochs on stderr.
type progressTracker struct {
	cmd *cobra.Command
	bar *progressbar.ProgressBar
}

func newProgressTracker(cmd *cobra.Command) *progressTracker {
	return &progressTracker{cmd: cmd}
}

func (t *progressTracker) Start(total int) {
	t.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(t.cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("training"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish())
}

func (t *progressTracker) Update(done int) {
	if t.bar != nil {
		_ = t.bar.Set(done)
	}
}

func (t *progressTracker) Finish() {
	if t.bar != nil {
		_ = t.bar.Finish()
	}
}
