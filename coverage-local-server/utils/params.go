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

// Package utils parses the query parameters of local coverage requests.
package utils

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/googlegenomics/coverage/internal/reads"
	"github.com/googlegenomics/coverage/internal/report"
)

// Params holds the parameters of a single coverage request.
type Params struct {
	ID            string
	Format        string
	ReferenceName string
	Start, End    uint32
	MaxCoverage   int
	IncludeReads  bool
}

// CoverageParams validates id and parses query.  Format errors wrap
// reads.ErrUnsupportedFormat.
func CoverageParams(id string, query url.Values) (Params, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return Params{}, fmt.Errorf("invalid ID %q", id)
	}

	format, err := reads.ParseFormat(query.Get("format"))
	if err != nil {
		return Params{}, err
	}
	params := Params{
		ID:            id,
		Format:        format,
		ReferenceName: query.Get("referenceName"),
	}

	start, end := query.Get("start"), query.Get("end")
	if params.ReferenceName == "" && (start != "" || end != "") {
		return Params{}, fmt.Errorf("missing reference name")
	}
	if start != "" {
		n, err := strconv.ParseUint(start, 10, 32)
		if err != nil {
			return Params{}, fmt.Errorf("invalid start: %v", err)
		}
		params.Start = uint32(n)
	}
	if end != "" {
		n, err := strconv.ParseUint(end, 10, 32)
		if err != nil {
			return Params{}, fmt.Errorf("invalid end: %v", err)
		}
		params.End = uint32(n)
	}
	if params.End > 0 && params.Start > params.End {
		return Params{}, fmt.Errorf("start %d > end %d", params.Start, params.End)
	}

	if s := query.Get("maxCoverage"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return Params{}, fmt.Errorf("invalid maxCoverage %q", s)
		}
		params.MaxCoverage = n
	}
	if s := query.Get("reads"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Params{}, fmt.Errorf("invalid reads flag: %v", err)
		}
		params.IncludeReads = b
	}
	return params, nil
}

// Options returns the report options requested by p.
func (p Params) Options() report.Options {
	return report.Options{MaxCoverage: p.MaxCoverage, IncludeReads: p.IncludeReads}
}

// Extension returns the file extension of the requested format.
func (p Params) Extension() string {
	return "." + strings.ToLower(p.Format)
}
