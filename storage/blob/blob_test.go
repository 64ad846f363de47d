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

package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsouza/fake-gcs-server/fakestorage"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func readAll(t *testing.T, store Store, name string) string {
	r, err := store.Open(context.Background(), name)
	assert.NoError(t, err)
	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.NoError(t, r.Close())
	return string(data)
}

func TestPOSIX(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "ratings.csv"), []byte("hello"), 0o644)
	assert.NoError(t, err)

	store, err := Open(context.Background(), dir)
	assert.NoError(t, err)
	assert.IsType(t, &POSIX{}, store)
	assert.Equal(t, "hello", readAll(t, store, "ratings.csv"))

	_, err = store.Open(context.Background(), "missing.csv")
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.NoError(t, store.Close())
}

func TestGCS(t *testing.T) {
	server, err := fakestorage.NewServerWithOptions(fakestorage.Options{
		Scheme:     "http",
		Port:       5050,
		PublicHost: "localhost:5050",
		InitialObjects: []fakestorage.Object{{
			ObjectAttrs: fakestorage.ObjectAttrs{BucketName: "suggest-test", Name: "tables/ratings.csv"},
			Content:     []byte("hello"),
		}},
	})
	assert.NoError(t, err)
	defer server.Stop()
	t.Setenv("GCS_EMULATOR_ENDPOINT", "http://localhost:5050/storage/v1/")

	store, err := Open(context.Background(), "gs://suggest-test/tables")
	assert.NoError(t, err)
	assert.IsType(t, &GCS{}, store)
	assert.Equal(t, "hello", readAll(t, store, "ratings.csv"))

	_, err = store.Open(context.Background(), "missing.csv")
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.NoError(t, store.Close())
}

func TestS3(t *testing.T) {
	endpoint := os.Getenv("S3_ENDPOINT")
	bucket := os.Getenv("S3_BUCKET")
	if endpoint == "" || bucket == "" {
		t.Skip("S3_ENDPOINT and S3_BUCKET are not set")
	}
	store, err := NewS3(S3Config{Endpoint: endpoint, Bucket: bucket, UseSSL: false})
	assert.NoError(t, err)
	_, err = store.Open(context.Background(), "missing.csv")
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestAzureBlob(t *testing.T) {
	container := os.Getenv("AZURE_CONTAINER")
	if os.Getenv("AZURE_STORAGE_CONNECTION_STRING") == "" || container == "" {
		t.Skip("AZURE_STORAGE_CONNECTION_STRING and AZURE_CONTAINER are not set")
	}
	store, err := NewAzureBlob(AzureBlobConfig{}, container, "tables")
	assert.NoError(t, err)
	_, err = store.Open(context.Background(), "missing.csv")
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestParseLocation(t *testing.T) {
	bucket, prefix, query, err := parseLocation("s3://bucket/a/b/?endpoint=localhost:9000&use_ssl=false")
	assert.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Equal(t, "a/b", prefix)
	assert.Equal(t, "localhost:9000", query.Get("endpoint"))

	_, _, _, err = parseLocation("s3:///prefix")
	assert.True(t, errors.Is(err, errors.NotValid))

	_, err = Open(context.Background(), "s3://bucket/prefix")
	assert.True(t, errors.Is(err, errors.NotValid))
}
