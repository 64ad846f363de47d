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
	"net/url"
	"strings"

	"github.com/juju/errors"
)

const (
	S3Prefix    = "s3://"
	GCSPrefix   = "gs://"
	AzurePrefix = "azblob://"
)

// Store reads named objects such as table dumps.
type Store interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Close() error
}

// Open returns the store at location: s3://bucket/prefix, gs://bucket/prefix,
// azblob://container/prefix, or a local directory.
func Open(ctx context.Context, location string) (Store, error) {
	switch {
	case strings.HasPrefix(location, S3Prefix):
		bucket, prefix, query, err := parseLocation(location)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewS3(S3Config{
			Endpoint:        query.Get("endpoint"),
			AccessKeyID:     query.Get("access_key_id"),
			SecretAccessKey: query.Get("secret_access_key"),
			UseSSL:          query.Get("use_ssl") != "false",
			Bucket:          bucket,
			Prefix:          prefix,
		})
	case strings.HasPrefix(location, GCSPrefix):
		bucket, prefix, query, err := parseLocation(location)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewGCS(ctx, GCSConfig{
			Bucket:          bucket,
			Prefix:          prefix,
			CredentialsFile: query.Get("credentials_file"),
		})
	case strings.HasPrefix(location, AzurePrefix):
		container, prefix, query, err := parseLocation(location)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewAzureBlob(AzureBlobConfig{
			AccountName: query.Get("account_name"),
			AccountKey:  query.Get("account_key"),
			Endpoint:    query.Get("endpoint"),
		}, container, prefix)
	default:
		return NewPOSIX(location), nil
	}
}

func parseLocation(location string) (bucket, prefix string, query url.Values, err error) {
	parsed, err := url.Parse(location)
	if err != nil {
		return "", "", nil, errors.Trace(err)
	}
	if parsed.Host == "" {
		return "", "", nil, errors.NotValidf("bucket in %s", location)
	}
	return parsed.Host, strings.Trim(parsed.Path, "/"), parsed.Query(), nil
}
