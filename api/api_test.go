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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/googlegenomics/coverage/internal/readstest"
	"github.com/googlegenomics/coverage/internal/report"
	"google.golang.org/api/option"
)

const (
	testSizeLimit = 1024 * 1024

	testSAM = "@HD\tVN:1.5\tSO:coordinate\n" +
		"@SQ\tSN:chr1\tLN:100\n" +
		"@SQ\tSN:chr2\tLN:50\n" +
		"a\t0\tchr1\t1\t60\t10M\t*\t0\t0\tAAAAAAAAAA\t*\n" +
		"b\t0\tchr1\t6\t60\t10M\t*\t0\t0\tAAAAAAAAAA\t*\n" +
		"c\t0\tchr1\t21\t60\t5M\t*\t0\t0\tAAAAA\t*\n" +
		"d\t0\tchr2\t1\t60\t8M\t*\t0\t0\tAAAAAAAA\t*\n"
)

func TestInvalidInputs(t *testing.T) {
	testCases := []struct{ name, url string }{
		{"no readset ID or parameters", "/coverage/"},
		{"missing readset ID", "/coverage/?format=BAM"},
		{"invalid ID (no object)", "/coverage/bucket?format=BAM"},
		{"invalid ID (trailing slash, no object)", "/coverage/bucket/?format=BAM"},
		{"start without reference", "/coverage/bucket/object?start=10"},
		{"invalid start", "/coverage/bucket/object?referenceName=chr1&start=x"},
		{"negative end", "/coverage/bucket/object?referenceName=chr1&end=-1"},
		{"zero max coverage", "/coverage/bucket/object?maxCoverage=0"},
		{"invalid reads flag", "/coverage/bucket/object?reads=maybe"},
	}
	ctx := context.Background()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, "InvalidInput", http.StatusBadRequest,
				testQuery(ctx, t, tc.url))
		})
	}
}

func TestUnsupportedFormats(t *testing.T) {
	testCases := []struct{ name, url string }{
		{"unknown format", "/coverage/bucket/object?format=XYZ"},
		{"cram format", "/coverage/bucket/object?format=CRAM"},
		{"lowercase bam", "/coverage/bucket/object?format=bam"},
	}
	ctx := context.Background()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, "UnsupportedFormat", http.StatusBadRequest,
				testQuery(ctx, t, tc.url))
		})
	}
}

func TestInvalidRange(t *testing.T) {
	expectError(t, "InvalidRange", http.StatusBadRequest,
		testQuery(context.Background(), t, "/coverage/bucket/object?referenceName=chr1&start=20&end=10"))
}

func TestMissingObject(t *testing.T) {
	ctx := context.Background()
	expectError(t, "NotFound", http.StatusNotFound,
		testQuery(ctx, t, "/coverage/foo/bar"))
}

func TestWhitelist(t *testing.T) {
	mux := http.NewServeMux()
	server := NewServer(func(*http.Request) (Client, http.Header, error) {
		t.Fatal("Storage client requested for a bucket that is not allowed")
		return nil, nil, nil
	}, testSizeLimit)
	server.Whitelist([]string{"allowed"})
	server.Export(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/coverage/other/sample.bam", nil))
	expectError(t, "PermissionDenied", http.StatusForbidden, w.Result())
}

func TestForwardOrigin(t *testing.T) {
	req := httptest.NewRequest("GET", "/coverage/", nil)
	req.Header.Set("Origin", "https://example.com")

	mux := http.NewServeMux()
	NewServer(nil, testSizeLimit).Export(mux)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if got, want := w.Header().Get("Access-Control-Allow-Origin"), "https://example.com"; got != want {
		t.Errorf("Wrong allowed origin: got %q, want %q", got, want)
	}
}

func TestAllMappedReads(t *testing.T) {
	fake := newFakeGCS(t)
	ctx := context.WithValue(context.Background(), testHTTPClientKey, &http.Client{Transport: fake})

	for _, object := range []string{"sample.bam", "noindex.bam", "sample.sam?format=SAM"} {
		t.Run(object, func(t *testing.T) {
			resp := decodeCoverage(t, testQuery(ctx, t, "/coverage/testdata/"+object))

			refs := resp.Coverage.References
			if got, want := len(refs), 2; got != want {
				t.Fatalf("Wrong number of references: got %d, want %d", got, want)
			}
			want := []report.Region{
				{Start: 0, End: 4, Coverage: 1},
				{Start: 5, End: 9, Coverage: 2},
				{Start: 10, End: 14, Coverage: 1},
				{Start: 15, End: 19, Coverage: 0},
				{Start: 20, End: 24, Coverage: 1},
			}
			if got := refs[0].Regions; !reflect.DeepEqual(got, want) {
				t.Errorf("Wrong chr1 regions: got %v, want %v", got, want)
			}
			if got, want := refs[1].Name, "chr2"; got != want {
				t.Errorf("Wrong second reference: got %q, want %q", got, want)
			}
			if got, want := refs[0].MaxCoverage, 2; got != want {
				t.Errorf("Wrong max coverage: got %d, want %d", got, want)
			}
		})
	}
}

func TestIndexedRegion(t *testing.T) {
	testCases := []struct {
		object string
		index  string
	}{
		{"sample.bam", "sample.bam.bai"},
		{"short.bam", "short.bai"},
	}
	for _, tc := range testCases {
		t.Run(tc.object, func(t *testing.T) {
			fake := newFakeGCS(t)
			ctx := context.WithValue(context.Background(), testHTTPClientKey, &http.Client{Transport: fake})

			resp := decodeCoverage(t, testQuery(ctx, t,
				"/coverage/testdata/"+tc.object+"?referenceName=chr1&start=6&end=12&reads=true"))

			if !fake.served(tc.index) {
				t.Errorf("Index %s was not read", tc.index)
			}
			refs := resp.Coverage.References
			if got, want := len(refs), 1; got != want {
				t.Fatalf("Wrong number of references: got %d, want %d", got, want)
			}
			want := []report.Region{
				{Start: 5, End: 9, Coverage: 2, Reads: []string{"a", "b"}},
				{Start: 10, End: 14, Coverage: 1, Reads: []string{"b"}},
			}
			if got := refs[0].Regions; !reflect.DeepEqual(got, want) {
				t.Errorf("Wrong regions: got %v, want %v", got, want)
			}
			if got, want := refs[0].Start, int64(6); got != want {
				t.Errorf("Wrong start: got %d, want %d", got, want)
			}
			if got, want := refs[0].End, int64(11); got != want {
				t.Errorf("Wrong end: got %d, want %d", got, want)
			}
		})
	}
}

func TestMaxCoverage(t *testing.T) {
	fake := newFakeGCS(t)
	ctx := context.WithValue(context.Background(), testHTTPClientKey, &http.Client{Transport: fake})

	resp := decodeCoverage(t, testQuery(ctx, t, "/coverage/testdata/noindex.bam?referenceName=chr1&maxCoverage=1"))
	want := []report.Region{
		{Start: 0, End: 9, Coverage: 1},
		{Start: 10, End: 19, Coverage: 0},
		{Start: 20, End: 24, Coverage: 1},
	}
	if got := resp.Coverage.References[0].Regions; !reflect.DeepEqual(got, want) {
		t.Errorf("Wrong regions: got %v, want %v", got, want)
	}
}

func TestUnknownReference(t *testing.T) {
	fake := newFakeGCS(t)
	ctx := context.WithValue(context.Background(), testHTTPClientKey, &http.Client{Transport: fake})
	expectError(t, "InvalidInput", http.StatusBadRequest,
		testQuery(ctx, t, "/coverage/testdata/sample.bam?referenceName=chrX"))
}

func TestSizeLimit(t *testing.T) {
	fake := newFakeGCS(t)
	ctx := context.WithValue(context.Background(), testHTTPClientKey, &http.Client{Transport: fake})
	ctx = context.WithValue(ctx, testSizeLimitKey, uint64(16))
	expectError(t, "InvalidRange", http.StatusBadRequest,
		testQuery(ctx, t, "/coverage/testdata/noindex.bam"))
}

// This test ensures that the undocumented error handling behaviour of the GCS
// storage client does not change.
func TestGoogleAPIInternalErrors(t *testing.T) {
	testCases := []struct {
		name       string
		transport  http.RoundTripper
		statusCode int
	}{
		{"unauthorized", fixedStatus(http.StatusUnauthorized), http.StatusUnauthorized},
		{"forbidden", fixedStatus(http.StatusForbidden), http.StatusForbidden},
		{"not found", fixedStatus(http.StatusNotFound), http.StatusNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := &http.Client{Transport: tc.transport}
			ctx := context.WithValue(context.Background(), testHTTPClientKey, client)
			resp := testQuery(ctx, t, "/coverage/testdata/sample.bam?referenceName=chr1")
			if got, want := resp.StatusCode, tc.statusCode; got != want {
				t.Errorf("Wrong status code: got %v, want %v", got, want)
			}
		})
	}
}

func TestObjectSeeker(t *testing.T) {
	content := []byte("0123456789abcdef")
	object := &memoryObject{data: content}
	s, err := openObjectSeeker(context.Background(), object)
	if err != nil {
		t.Fatalf("openObjectSeeker() returned error: %v", err)
	}
	defer s.Close()

	read := func(n int) string {
		buf := make([]byte, n)
		if _, err := io.ReadFull(s, buf); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		return string(buf)
	}

	if got, want := read(4), "0123"; got != want {
		t.Errorf("Wrong data: got %q, want %q", got, want)
	}
	if _, err := s.Seek(10, io.SeekStart); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if got, want := read(3), "abc"; got != want {
		t.Errorf("Wrong data after seek: got %q, want %q", got, want)
	}
	if pos, err := s.Seek(-8, io.SeekCurrent); err != nil || pos != 5 {
		t.Errorf("Seek(-8, SeekCurrent): got (%d, %v), want 5", pos, err)
	}
	if got, want := read(2), "56"; got != want {
		t.Errorf("Wrong data after relative seek: got %q, want %q", got, want)
	}
	if _, err := s.Seek(0, io.SeekEnd); err == nil {
		t.Error("Seek(0, SeekEnd): expected error, not success")
	}
	if _, err := s.Seek(-1, io.SeekStart); err == nil {
		t.Error("Seek(-1, SeekStart): expected error, not success")
	}
	if pos, _ := s.Seek(0, io.SeekCurrent); pos != 7 {
		t.Errorf("Wrong position: got %d, want 7", pos)
	}
	if got, want := object.opens, []int64{0, 10, 5}; !reflect.DeepEqual(got, want) {
		t.Errorf("Wrong range reads: got %v, want %v", got, want)
	}
}

func TestSizeLimitedReader(t *testing.T) {
	testCases := []struct {
		name     string
		limit    int64
		exceeded bool
	}{
		{"no limit", -1, false},
		{"exact", 10, false},
		{"larger", 20, false},
		{"smaller", 9, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := &sizeLimitedReader{r: strings.NewReader("0123456789"), remaining: tc.limit}
			_, err := ioutil.ReadAll(r)
			if got := err == errSizeLimitExceeded; got != tc.exceeded {
				t.Errorf("Wrong result: got error %v, want exceeded %v", err, tc.exceeded)
			}
			if got := r.exceeded; got != tc.exceeded {
				t.Errorf("Wrong exceeded flag: got %v, want %v", got, tc.exceeded)
			}
		})
	}
}

type testContextKey int

var (
	testHTTPClientKey = testContextKey(0)
	testSizeLimitKey  = testContextKey(1)
)

func testQuery(ctx context.Context, t *testing.T, url string) *http.Response {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		t.Fatalf("Failed to parse URL %q: %v", url, err)
	}
	req = req.WithContext(ctx)

	client, ok := ctx.Value(testHTTPClientKey).(*http.Client)
	if !ok {
		client = &http.Client{Transport: fixedStatus(http.StatusNotFound)}
	}
	sizeLimit, ok := ctx.Value(testSizeLimitKey).(uint64)
	if !ok {
		sizeLimit = testSizeLimit
	}

	gcs, err := storage.NewClient(ctx, option.WithHTTPClient(client))
	if err != nil {
		t.Fatalf("Failed to create storage client: %v", err)
	}
	newStorageClient := func(*http.Request) (Client, http.Header, error) {
		return GCSClient{gcs}, nil, nil
	}

	mux := http.NewServeMux()
	server := NewServer(newStorageClient, sizeLimit)
	server.Export(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	return w.Result()
}

func decodeCoverage(t *testing.T, resp *http.Response) *report.Response {
	t.Helper()
	if got, want := resp.StatusCode, http.StatusOK; got != want {
		body, _ := ioutil.ReadAll(resp.Body)
		t.Fatalf("Wrong status code: got %v, want %v (%s)", got, want, body)
	}
	var body report.Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return &body
}

func expectError(t *testing.T, name string, code int, resp *http.Response) {
	if got, want := resp.StatusCode, code; got != want {
		t.Errorf("Wrong status code: got %v, want %v", got, want)
	}
	body := make(map[string]interface{})
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Errorf("Failed to parse response: %v", err)
	}
	if got, want := body["error"], name; got != want {
		t.Errorf("Wrong 'error' field value: got %v, want %v", got, want)
	}
}

type fixedStatus int

func (code fixedStatus) RoundTrip(*http.Request) (*http.Response, error) {
	return &http.Response{
		Status:     http.StatusText(int(code)),
		StatusCode: int(code),
		Body:       http.NoBody,
	}, nil
}

// fakeGCS serves in-memory objects keyed by their base name and records which
// of them were read.
type fakeGCS struct {
	*testing.T
	objects map[string][]byte

	mu   sync.Mutex
	hits map[string]bool
}

func newFakeGCS(t *testing.T) *fakeGCS {
	data, bai := readstest.EncodeBAM(t, testSAM)
	return &fakeGCS{
		T: t,
		objects: map[string][]byte{
			"sample.bam":     data,
			"sample.bam.bai": bai,
			"short.bam":      data,
			"short.bai":      bai,
			"noindex.bam":    data,
			"sample.sam":     []byte(testSAM),
		},
		hits: make(map[string]bool),
	}
}

func (fake *fakeGCS) RoundTrip(req *http.Request) (*http.Response, error) {
	name := path.Base(req.URL.Path)

	content, ok := fake.objects[name]
	if !ok {
		response := httptest.NewRecorder()
		http.Error(response, fmt.Sprintf("No test object %q", name), http.StatusNotFound)
		return response.Result(), nil
	}

	fake.mu.Lock()
	fake.hits[name] = true
	fake.mu.Unlock()

	w := httptest.NewRecorder()
	http.ServeContent(w, req, name, time.Now(), bytes.NewReader(content))
	return w.Result(), nil
}

func (fake *fakeGCS) served(name string) bool {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return fake.hits[name]
}

// memoryObject is an ObjectHandle over a byte slice that records the offset
// of every range read.
type memoryObject struct {
	data  []byte
	opens []int64
}

func (m *memoryObject) NewRangeReader(_ context.Context, offset, length int64) (io.ReadCloser, error) {
	m.opens = append(m.opens, offset)
	end := int64(len(m.data))
	if length >= 0 && offset+length < end {
		end = offset + length
	}
	return ioutil.NopCloser(bytes.NewReader(m.data[offset:end])), nil
}
