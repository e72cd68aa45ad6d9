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

// Package file serves coverage reports for alignment files stored in a local
// directory.
package file

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/googlegenomics/coverage/coverage-local-server/model"
	"github.com/googlegenomics/coverage/coverage-local-server/utils"
	"github.com/googlegenomics/coverage/internal/genomics"
	"github.com/googlegenomics/coverage/internal/reads"
	"github.com/googlegenomics/coverage/internal/report"
)

// handlerError carries the HTTP status and error name reported to clients.
type handlerError struct {
	name  string
	code  int
	cause error
}

func (err *handlerError) Error() string {
	return fmt.Sprintf("%s (%d): %v", err.name, err.code, err.cause)
}

func invalidInput(err error) error {
	return &handlerError{"InvalidInput", http.StatusBadRequest, err}
}

// NewCoverageHandler builds a gin handler that reports the coverage of
// <directory>/<id>.bam or <directory>/<id>.sam.  A BAM index named
// <id>.bam.bai is used, when present, for requests naming a reference.  If
// maxReads is positive, requests collecting more reads fail.
func NewCoverageHandler(directory string, maxReads int) gin.HandlerFunc {
	return func(c *gin.Context) {
		params, err := utils.CoverageParams(c.Param("id"), c.Request.URL.Query())
		if err != nil {
			if errors.Is(err, reads.ErrUnsupportedFormat) {
				writeError(c, &handlerError{"UnsupportedFormat", http.StatusBadRequest, err})
			} else {
				writeError(c, invalidInput(err))
			}
			return
		}

		refs, err := coverage(directory, params, maxReads)
		if err != nil {
			writeError(c, err)
			return
		}

		var response report.Response
		response.Coverage.Format = params.Format
		response.Coverage.References = refs
		c.JSON(http.StatusOK, &response)
	}
}

func coverage(directory string, params utils.Params, maxReads int) ([]report.Reference, error) {
	name := filepath.Join(directory, params.ID+params.Extension())
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &handlerError{"NotFound", http.StatusNotFound, fmt.Errorf("no %s file for %s", params.Format, params.ID)}
		}
		return nil, fmt.Errorf("opening data: %v", err)
	}
	defer f.Close()

	r, region, err := open(f, name, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	groups, err := reads.Collect(r, region, reads.DefaultFilter, maxReads)
	if err == reads.ErrTooManyReads {
		return nil, &handlerError{"InvalidRange", http.StatusBadRequest, fmt.Errorf("more than %d reads in %s", maxReads, region)}
	}
	if err != nil {
		return nil, fmt.Errorf("collecting reads: %v", err)
	}
	return report.Build(r.Header(), groups, region, params.Options())
}

// open returns a reader over the records of f that may overlap the requested
// region, using the index next to name when one exists.
func open(f *os.File, name string, params utils.Params) (reads.Reader, genomics.Region, error) {
	if params.Format == "BAM" && params.ReferenceName != "" {
		if bai, err := os.Open(name + ".bai"); err == nil {
			defer bai.Close()
			return openIndexed(f, bai, params)
		}
	}

	r, err := reads.Open(f, params.Format)
	if err != nil {
		return nil, genomics.Region{}, fmt.Errorf("opening %s: %v", params.ID, err)
	}
	region, err := params.Region(r.Header())
	if err != nil {
		r.Close()
		return nil, genomics.Region{}, invalidInput(err)
	}
	return r, region, nil
}

func openIndexed(f, bai *os.File, params utils.Params) (reads.Reader, genomics.Region, error) {
	ir, err := reads.OpenIndexed(f, bai)
	if err != nil {
		return nil, genomics.Region{}, fmt.Errorf("opening %s: %v", params.ID, err)
	}
	region, err := params.Region(ir.Header())
	if err != nil {
		ir.Close()
		return nil, genomics.Region{}, invalidInput(err)
	}
	r, err := ir.Query(region)
	if err != nil {
		ir.Close()
		return nil, genomics.Region{}, fmt.Errorf("querying index: %v", err)
	}
	return r, region, nil
}

func writeError(c *gin.Context, err error) {
	if err, ok := err.(*handlerError); ok {
		c.JSON(err.code, model.ErrorResponse{
			Error:   err.name,
			Message: fmt.Sprintf("%s: %v", http.StatusText(err.code), err.cause),
		})
		return
	}
	log.Printf("Internal error: %v", err)
	c.String(http.StatusInternalServerError, "%s: %v", http.StatusText(http.StatusInternalServerError), err)
}
