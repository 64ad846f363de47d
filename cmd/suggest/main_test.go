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
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeFixture(t *testing.T) string {
	dir := t.TempDir()
	ratings := "user_id,movie_id,rating\nuser1,item1,5\nuser1,item2,3\nuser2,item1,4\nuser2,item2,2\nuser3,item1,1\n"
	items := "movie_id,title\nitem1,Toy Story\n"
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "merged_dataset.csv"), []byte(ratings), 0o644))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "movies_clean.csv"), []byte(items), 0o644))
	path := filepath.Join(dir, "config.toml")
	text := fmt.Sprintf("[source]\nuri = \"csv://%s\"\n", dir)
	assert.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	rootCommand.SetOut(&out)
	rootCommand.SetErr(&bytes.Buffer{})
	rootCommand.SetArgs(args)
	err := rootCommand.Execute()
	return out.String(), err
}

func TestRecommendCommand(t *testing.T) {
	path := writeFixture(t)
	out, err := execute("recommend", "user3", "-c", path, "-k", "2")
	assert.NoError(t, err)
	assert.Contains(t, out, "item2")
	assert.Contains(t, out, "Item item2")
	assert.Contains(t, out, "2.5000")
	assert.NotContains(t, out, "Toy Story")
}

func TestPredictCommand(t *testing.T) {
	path := writeFixture(t)
	out, err := execute("predict", "user3", "item2", "-c", path, "-k", "2")
	assert.NoError(t, err)
	assert.Equal(t, "2.5000 (neighborhood)\n", out)
}

func TestSimilarityCommand(t *testing.T) {
	path := writeFixture(t)
	out, err := execute("similarity", "user3", "user1", "-c", path)
	assert.NoError(t, err)
	assert.Equal(t, "1.000000\n", out)
}

func TestNeighborsCommand(t *testing.T) {
	path := writeFixture(t)
	out, err := execute("neighbors", "user3", "item2", "-c", path, "-k", "2")
	assert.NoError(t, err)
	assert.Contains(t, out, "user1")
	assert.Contains(t, out, "user2")
	assert.Contains(t, out, "1.000000")
}

func TestConfigCommand(t *testing.T) {
	out, err := execute("config", "--schema")
	assert.NoError(t, err)
	assert.Contains(t, out, "\"recommend\"")
	assert.Contains(t, out, "\"item_filter\"")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute("version")
	assert.NoError(t, err)
	assert.Contains(t, out, "API version")
}
