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

package file

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/coverage/coverage-local-server/model"
	"github.com/googlegenomics/coverage/internal/readstest"
	"github.com/googlegenomics/coverage/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSAM = "@HD\tVN:1.5\tSO:coordinate\n" +
	"@SQ\tSN:chr1\tLN:100\n" +
	"@SQ\tSN:chr2\tLN:50\n" +
	"a\t0\tchr1\t1\t60\t10M\t*\t0\t0\tAAAAAAAAAA\t*\n" +
	"b\t0\tchr1\t6\t60\t10M\t*\t0\t0\tAAAAAAAAAA\t*\n" +
	"dup\t1024\tchr1\t6\t60\t10M\t*\t0\t0\tAAAAAAAAAA\t*\n" +
	"c\t0\tchr2\t11\t60\t5M\t*\t0\t0\tAAAAA\t*\n"

func setupCoverageRouter(t *testing.T, maxReads int) *gin.Engine {
	dir := t.TempDir()

	data, bai := readstest.EncodeBAM(t, testSAM)
	files := map[string][]byte{
		"indexed.bam":     data,
		"indexed.bam.bai": bai,
		"plain.bam":       data,
		"text.sam":        []byte(testSAM),
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), content, 0644))
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/coverage/:id", NewCoverageHandler(dir, maxReads))
	return r
}

func get(router *gin.Engine, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", url, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestCoverageRoute(t *testing.T) {
	router := setupCoverageRouter(t, 0)

	for _, url := range []string{
		"/coverage/indexed",
		"/coverage/plain",
		"/coverage/text?format=SAM",
	} {
		t.Run(url, func(t *testing.T) {
			w := get(router, url)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var response report.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			refs := response.Coverage.References
			require.Len(t, refs, 2)
			assert.Equal(t, "chr1", refs[0].Name)
			assert.Equal(t, []report.Region{
				{Start: 0, End: 4, Coverage: 1},
				{Start: 5, End: 9, Coverage: 2},
				{Start: 10, End: 14, Coverage: 1},
			}, refs[0].Regions)
			assert.Equal(t, "chr2", refs[1].Name)
			assert.Equal(t, []report.Region{{Start: 10, End: 14, Coverage: 1}}, refs[1].Regions)
		})
	}
}

func TestCoverageRoute_Region(t *testing.T) {
	router := setupCoverageRouter(t, 0)

	for _, id := range []string{"indexed", "plain"} {
		t.Run(id, func(t *testing.T) {
			w := get(router, "/coverage/"+id+"?referenceName=chr1&start=12&end=30&reads=true")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var response report.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			refs := response.Coverage.References
			require.Len(t, refs, 1)
			assert.Equal(t, int64(12), refs[0].Start)
			assert.Equal(t, int64(29), refs[0].End)
			assert.Equal(t, []report.Region{{Start: 5, End: 14, Coverage: 1, Reads: []string{"b"}}}, refs[0].Regions)
			assert.InDelta(t, 3.0/18.0, refs[0].AverageCoverage, 1e-9)
			assert.Equal(t, 0, refs[0].MinCoverage)
			assert.Equal(t, 1, refs[0].MaxCoverage)
		})
	}
}

func TestCoverageRoute_Errors(t *testing.T) {
	router := setupCoverageRouter(t, 2)

	testCases := []struct {
		name string
		url  string
		code int
		want string
	}{
		{"missing file", "/coverage/absent", http.StatusNotFound, "NotFound"},
		{"sam as bam", "/coverage/text", http.StatusNotFound, "NotFound"},
		{"unsupported format", "/coverage/indexed?format=CRAM", http.StatusBadRequest, "UnsupportedFormat"},
		{"unknown reference", "/coverage/indexed?referenceName=chrX", http.StatusBadRequest, "InvalidInput"},
		{"bad start", "/coverage/indexed?referenceName=chr1&start=x", http.StatusBadRequest, "InvalidInput"},
		{"too many reads", "/coverage/plain", http.StatusBadRequest, "InvalidRange"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := get(router, tc.url)
			assert.Equal(t, tc.code, w.Code)

			var body model.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.want, body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}
