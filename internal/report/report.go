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

// Package report defines the JSON document describing the coverage of one or
// more references, shared by the servers and the client.
package report

import (
	"fmt"

	"github.com/biogo/hts/sam"
	"github.com/googlegenomics/coverage/coverage"
	"github.com/googlegenomics/coverage/internal/genomics"
)

// Response is the top level document returned by the coverage endpoints.
type Response struct {
	Coverage struct {
		Format     string      `json:"format"`
		References []Reference `json:"references"`
	} `json:"coverage"`
}

// Reference describes the coverage of the requested range of one reference.
// Start and End are zero based and inclusive.
type Reference struct {
	Name            string   `json:"referenceName"`
	Length          int      `json:"referenceLength"`
	Start           int64    `json:"start"`
	End             int64    `json:"end"`
	Reads           int      `json:"reads"`
	AverageCoverage float64  `json:"averageCoverage"`
	MinCoverage     int      `json:"minCoverage"`
	MaxCoverage     int      `json:"maxCoverage"`
	SpanLength      int64    `json:"spanLength"`
	Regions         []Region `json:"regions"`
}

// Region is a single coverage region.
type Region struct {
	Start    int64    `json:"start"`
	End      int64    `json:"end"`
	Coverage int      `json:"coverage"`
	Reads    []string `json:"reads,omitempty"`
}

// Options controls how references are summarized.
type Options struct {
	// MaxCoverage, if positive, caps the depth of every map.
	MaxCoverage int
	// IncludeReads lists the names of the covering reads in each region.
	IncludeReads bool
}

// Build computes one coverage map per reference and summarizes the part of
// it that falls inside region.  When region names a single reference it is
// reported even if no reads cover it; otherwise references without reads are
// omitted.
func Build(h *sam.Header, groups map[int32][]coverage.Interval, region genomics.Region, opts Options) ([]Reference, error) {
	var builderOpts []coverage.Option
	if opts.MaxCoverage > 0 {
		builderOpts = append(builderOpts, coverage.WithMaxCoverage(opts.MaxCoverage))
	}

	var refs []Reference
	for _, ref := range h.Refs() {
		id := int32(ref.ID())
		if region.ReferenceID >= 0 && id != region.ReferenceID {
			continue
		}
		reads := groups[id]
		if region.ReferenceID < 0 && len(reads) == 0 {
			continue
		}

		m, err := coverage.NewBuilder(reads, builderOpts...).Build()
		if err != nil {
			return nil, fmt.Errorf("building coverage for %s: %v", ref.Name(), err)
		}
		refs = append(refs, summarize(ref, m, len(reads), region.Range(ref.Len()), opts.IncludeReads))
	}
	return refs, nil
}

// summarize reports the part of m inside query.  Positions of query outside
// the span of m have no reads and count as zero coverage in the average and
// the minimum.
func summarize(ref *sam.Reference, m *coverage.Map, reads int, query coverage.Range, includeReads bool) Reference {
	summary := Reference{
		Name:       ref.Name(),
		Length:     ref.Len(),
		Start:      query.Start(),
		End:        query.End(),
		Reads:      reads,
		SpanLength: m.SpanLength(),
		Regions:    []Region{},
	}

	var covered, total int64
	for i, r := range m.Overlapping(query) {
		if i == 0 || r.Coverage() < summary.MinCoverage {
			summary.MinCoverage = r.Coverage()
		}
		if r.Coverage() > summary.MaxCoverage {
			summary.MaxCoverage = r.Coverage()
		}
		n := min(r.End(), query.End()) - max(r.Start(), query.Start()) + 1
		covered += n
		total += n * int64(r.Coverage())

		region := Region{Start: r.Start(), End: r.End(), Coverage: r.Coverage()}
		if includeReads {
			for _, e := range r.Elements() {
				region.Reads = append(region.Reads, name(e))
			}
		}
		summary.Regions = append(summary.Regions, region)
	}

	if covered < query.Length() {
		summary.MinCoverage = 0
	}
	if query.Length() > 0 {
		summary.AverageCoverage = float64(total) / float64(query.Length())
	}
	return summary
}

func name(e coverage.Interval) string {
	if read, ok := e.(genomics.Read); ok {
		return read.Name
	}
	return fmt.Sprint(e)
}
