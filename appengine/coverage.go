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


// Package coverage serves the /coverage/ endpoint on App Engine.  Objects are
// read from GCS with the bearer token of each request.  BUCKET_WHITELIST, a
// comma-separated list, restricts the buckets that may be read, and
// SIZE_LIMIT overrides the number of bytes an unindexed object may stream.
package coverage

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/googlegenomics/coverage/api"
	"google.golang.org/appengine"
)

const defaultSizeLimit = 8 * 1024 * 1024

func init() {
	server, err := newServer(os.Getenv)
	if err != nil {
		log.Fatalf("Configuring coverage server: %v", err)
	}
	mux := http.NewServeMux()
	server.Export(mux)
	http.HandleFunc("/", mux.ServeHTTP)
}

// newServer configures a server from the environment variables returned by
// getenv.
func newServer(getenv func(string) string) (*api.Server, error) {
	sizeLimit := uint64(defaultSizeLimit)
	if s := getenv("SIZE_LIMIT"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing SIZE_LIMIT: %v", err)
		}
		sizeLimit = n
	}

	server := api.NewServer(newAppEngineClient, sizeLimit)
	if list := getenv("BUCKET_WHITELIST"); list != "" {
		server.Whitelist(strings.Split(list, ","))
	}
	return server, nil
}

func newAppEngineClient(req *http.Request) (api.Client, http.Header, error) {
	return api.NewClientFromBearerToken(req.WithContext(appengine.NewContext(req)))
}
