// Copyright 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSClient is Client for accessing Google Cloud Storage.
type GCSClient struct {
	*storage.Client
}

// NewObjectHandle returns a handle to a specified object in the
// storage engine.
func (c GCSClient) NewObjectHandle(bucket, object string) ObjectHandle {
	return gcsObjectHandle{c.Bucket(bucket).Object(object)}
}

type gcsObjectHandle struct {
	*storage.ObjectHandle
}

func (h gcsObjectHandle) NewRangeReader(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	return h.ObjectHandle.NewRangeReader(ctx, offset, length)
}

// sharedClient lazily creates a single storage client for a fixed set of
// options.
type sharedClient struct {
	once   sync.Once
	client *storage.Client
	opts   []option.ClientOption
}

func (s *sharedClient) get() (Client, http.Header, error) {
	s.once.Do(func() {
		gcs, err := storage.NewClient(context.Background(), s.opts...)
		if err != nil {
			log.Fatalf("Creating shared storage client: %v", err)
		}
		s.client = gcs
	})
	return GCSClient{s.client}, nil, nil
}

var (
	defaultClient = &sharedClient{}
	publicClient  = &sharedClient{opts: []option.ClientOption{option.WithHTTPClient(http.DefaultClient)}}
)

// NewDefaultClient returns a storage client that uses the application default
// credentials.  It caches the storage client for efficiency.
func NewDefaultClient(_ *http.Request) (Client, http.Header, error) {
	return defaultClient.get()
}

// NewPublicClient returns a storage client that does not use any form of
// client authorization.  It can only be used to read publicly-readable
// objects.
func NewPublicClient(_ *http.Request) (Client, http.Header, error) {
	return publicClient.get()
}

// NewClientFromBearerToken constructs a storage client that uses the OAuth2
// bearer token found in req to make storage requests.  The authorization
// header is returned alongside the client.
func NewClientFromBearerToken(req *http.Request) (Client, http.Header, error) {
	authorization := req.Header.Get("Authorization")

	fields := strings.Split(authorization, " ")
	if len(fields) != 2 || fields[0] != "Bearer" {
		return nil, nil, errMissingOrInvalidToken
	}

	token := oauth2.Token{
		TokenType:   fields[0],
		AccessToken: fields[1],
	}
	client, err := storage.NewClient(req.Context(), option.WithTokenSource(oauth2.StaticTokenSource(&token)))
	if err != nil {
		return nil, nil, fmt.Errorf("creating client with token source: %v", err)
	}

	return GCSClient{client}, http.Header{
		"Authorization": []string{authorization},
	}, nil
}

// newStorageError maps the errors returned by the storage client onto API
// errors.  Unrecognized errors are returned unchanged.
func newStorageError(context string, err error) error {
	switch err {
	case errMissingOrInvalidToken:
		return newPermissionDeniedError(context, err)
	case storage.ErrObjectNotExist:
		return newNotFoundError("object does not exist", err)
	case storage.ErrBucketNotExist:
		return newNotFoundError("bucket does not exist", err)
	}
	if err, ok := err.(*googleapi.Error); ok {
		switch err.Code {
		case http.StatusUnauthorized:
			return newInvalidAuthenticationError(context, err)
		case http.StatusForbidden:
			return newPermissionDeniedError(context, err)
		case http.StatusNotFound:
			return newNotFoundError(context, err)
		}
	}
	return err
}
