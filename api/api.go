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

// Package api implements an HTTP endpoint that reports the read coverage of
// alignment files stored in Google Cloud Storage.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/googlegenomics/coverage/analytics"
	"github.com/googlegenomics/coverage/internal/reads"
	"github.com/googlegenomics/coverage/internal/report"
)

const coveragePath = "/coverage/"

var (
	errInvalidOrUnspecifiedID = errors.New("invalid or unspecified ID")
	errMissingReferenceName   = errors.New("no reference name specified")
	errMissingOrInvalidToken  = errors.New("missing or invalid token")
	errSizeLimitExceeded      = errors.New("object exceeds size limit")
)

// NewStorageClientFunc is the type of function that constructs the appropriate
// storage.Client to satisfy the incoming request.  Any headers that caused this
// particular client to be created are also returned.
type NewStorageClientFunc func(*http.Request) (Client, http.Header, error)

// Server provides the coverage endpoint.  Must be created with NewServer.
type Server struct {
	newStorageClient NewStorageClientFunc
	sizeLimit        uint64
	whitelist        map[string]bool
}

// NewServer returns a new Server configured to use newStorageClient.  Objects
// without an index are streamed and rejected once more than sizeLimit bytes
// have been read.  A zero sizeLimit disables the check.
func NewServer(newStorageClient NewStorageClientFunc, sizeLimit uint64) *Server {
	return &Server{newStorageClient, sizeLimit, make(map[string]bool)}
}

// Whitelist adds buckets to the set of buckets which the server is allowed to
// access. If Whitelist is never called for a given Server then reads from any
// bucket are allowed.
func (server *Server) Whitelist(buckets []string) {
	for _, bucket := range buckets {
		server.whitelist[bucket] = true
	}
}

// Export registers the coverage endpoint with mux.
func (server *Server) Export(mux *http.ServeMux) {
	mux.Handle(coveragePath, forwardOrigin(server.serveCoverage))
}

func (server *Server) serveCoverage(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	track := analytics.TrackerFromContext(ctx)
	track(analytics.Event("Coverage", "Coverage Request Received", "", nil))

	query := req.URL.Query()
	format, err := reads.ParseFormat(query.Get("format"))
	if err != nil {
		writeError(w, newUnsupportedFormatError(err))
		return
	}

	bucket, object, err := parseID(req.URL.Path[len(coveragePath):])
	if err != nil {
		writeError(w, newInvalidInputError("parsing readset ID", err))
		return
	}

	if err := server.checkWhitelist(bucket); err != nil {
		writeError(w, newPermissionDeniedError("checking whitelist", err))
		return
	}

	params, err := parseParams(query)
	if err != nil {
		writeError(w, newInvalidInputError("parsing parameters", err))
		return
	}
	if params.end > 0 && params.start > params.end {
		writeError(w, newInvalidRangeError(fmt.Errorf("%s:%d-%d: start > end", params.referenceName, params.start, params.end)))
		return
	}

	gcs, _, err := server.newStorageClient(req)
	if err != nil {
		writeError(w, newStorageError("creating client", err))
		return
	}

	request := &coverageRequest{
		data:      gcs.NewObjectHandle(bucket, object),
		format:    format,
		params:    params,
		sizeLimit: int64(server.sizeLimit),
	}
	if format == "BAM" {
		request.indexObjects = []ObjectHandle{
			gcs.NewObjectHandle(bucket, object+".bai"),
			gcs.NewObjectHandle(bucket, strings.TrimSuffix(object, ".bam")+".bai"),
		}
	}

	refs, err := request.handle(ctx)
	if err != nil {
		track(analytics.Exception(err.Error(), false))
		writeError(w, err)
		return
	}

	var response report.Response
	response.Coverage.Format = format
	response.Coverage.References = refs
	writeJSON(w, http.StatusOK, &response)

	var count int64
	for _, ref := range refs {
		count += int64(len(ref.Regions))
	}
	track(analytics.Event("Coverage", "Coverage Response Region Count", "", &count))
	track(analytics.Event("Coverage", "Coverage Response Sent", "", nil))
}

func (server *Server) checkWhitelist(bucket string) error {
	if len(server.whitelist) == 0 || server.whitelist[bucket] {
		return nil
	}
	return fmt.Errorf("access to bucket %s is not allowed", bucket)
}

// parseID parses path and returns a GCS bucket and object, or an error.
func parseID(path string) (string, string, error) {
	if parts := strings.SplitN(path, "/", 2); len(parts) == 2 {
		if parts[0] != "" && parts[1] != "" {
			return parts[0], parts[1], nil
		}
	}
	return "", "", errInvalidOrUnspecifiedID
}

// coverageParams holds the query parameters of a coverage request.  The
// reference name is resolved against the file header once it has been read.
type coverageParams struct {
	referenceName string
	start, end    uint32
	maxCoverage   int
	includeReads  bool
}

func parseParams(query url.Values) (coverageParams, error) {
	var (
		params coverageParams
		start  = query.Get("start")
		end    = query.Get("end")
	)
	params.referenceName = query.Get("referenceName")
	if params.referenceName == "" && (start != "" || end != "") {
		return coverageParams{}, errMissingReferenceName
	}

	if start != "" {
		n, err := strconv.ParseUint(start, 10, 32)
		if err != nil {
			return coverageParams{}, fmt.Errorf("parsing start: %v", err)
		}
		params.start = uint32(n)
	}

	if end != "" {
		n, err := strconv.ParseUint(end, 10, 32)
		if err != nil {
			return coverageParams{}, fmt.Errorf("parsing end: %v", err)
		}
		params.end = uint32(n)
	}

	if s := query.Get("maxCoverage"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return coverageParams{}, fmt.Errorf("parsing maxCoverage: %v", err)
		}
		if n < 1 {
			return coverageParams{}, fmt.Errorf("maxCoverage must be at least 1, got %d", n)
		}
		params.maxCoverage = n
	}

	if s := query.Get("reads"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return coverageParams{}, fmt.Errorf("parsing reads: %v", err)
		}
		params.includeReads = b
	}

	return params, nil
}

// apiError is used to capture errors that have been defined in the API.
type apiError struct {
	name  string
	code  int
	cause error
}

func (err *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %v", err.name, err.code, err.cause)
}

func newApiError(name string, code int, context string, err error) error {
	return &apiError{name, code, fmt.Errorf("%s: %v", context, err)}
}

func newInvalidAuthenticationError(context string, err error) error {
	return newApiError("InvalidAuthentication", http.StatusUnauthorized, context, err)
}

func newInvalidInputError(context string, err error) error {
	return newApiError("InvalidInput", http.StatusBadRequest, context, err)
}

func newInvalidRangeError(err error) error {
	return &apiError{"InvalidRange", http.StatusBadRequest, err}
}

func newPermissionDeniedError(context string, err error) error {
	return newApiError("PermissionDenied", http.StatusForbidden, context, err)
}

func newUnsupportedFormatError(err error) error {
	return &apiError{"UnsupportedFormat", http.StatusBadRequest, err}
}

func newNotFoundError(context string, err error) error {
	return newApiError("NotFound", http.StatusNotFound, context, err)
}

// writeError writes either a JSON object or bare HTTP error describing err to
// w.  A JSON object is written only when the error has a defined name and code.
func writeError(w http.ResponseWriter, err error) {
	if err, ok := err.(*apiError); ok {
		writeJSON(w, err.code, map[string]interface{}{
			"error":   err.name,
			"message": fmt.Sprintf("%s: %v", http.StatusText(err.code), err.cause),
		})
		return
	}

	writeHTTPError(w, http.StatusInternalServerError, err)
}

func writeHTTPError(w http.ResponseWriter, code int, err error) {
	http.Error(w, fmt.Sprintf("%s: %v", http.StatusText(code), err), code)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Add("Content-type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

type forwardOrigin func(w http.ResponseWriter, req *http.Request)

func (f forwardOrigin) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if origin := req.Header.Get("Origin"); origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	f(w, req)
}
