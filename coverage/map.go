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

package coverage

import (
	"sort"
	"strings"
)

// Map is an ordered, contiguous sequence of coverage regions spanning the
// positions from the smallest interval start to the largest interval end.
// Positions inside that span that no interval covers are represented by
// regions with zero coverage.  The zero value is an empty map.
type Map struct {
	regions []Region
}

// Len returns the number of regions in m.
func (m *Map) Len() int { return len(m.regions) }

// IsEmpty reports whether m has no regions.
func (m *Map) IsEmpty() bool { return len(m.regions) == 0 }

// Region returns the i'th region of m.
func (m *Map) Region(i int) (Region, error) {
	if i < 0 || i >= len(m.regions) {
		return Region{}, &IndexOutOfRangeError{Index: i, Len: len(m.regions)}
	}
	return m.regions[i], nil
}

// Regions returns a copy of all regions in order.
func (m *Map) Regions() []Region {
	return append([]Region(nil), m.regions...)
}

// Span returns the range covered by m.  It returns false for an empty map.
func (m *Map) Span() (Range, bool) {
	if len(m.regions) == 0 {
		return Range{}, false
	}
	return Range{m.regions[0].start, m.regions[len(m.regions)-1].end}, true
}

// SpanLength returns the number of positions spanned by m, or zero if m is
// empty.
func (m *Map) SpanLength() int64 {
	span, ok := m.Span()
	if !ok {
		return 0
	}
	return span.Length()
}

// RegionAt returns the region containing pos.  It returns false if pos lies
// outside the span of m.
func (m *Map) RegionAt(pos int64) (Region, bool) {
	i := sort.Search(len(m.regions), func(i int) bool {
		return m.regions[i].end >= pos
	})
	if i < len(m.regions) && m.regions[i].start <= pos {
		return m.regions[i], true
	}
	return Region{}, false
}

// Overlapping returns the regions sharing at least one position with r.
func (m *Map) Overlapping(r Interval) []Region {
	if r.Start() > r.End() {
		return nil
	}
	var regions []Region
	i := sort.Search(len(m.regions), func(i int) bool {
		return m.regions[i].end >= r.Start()
	})
	for ; i < len(m.regions) && m.regions[i].start <= r.End(); i++ {
		regions = append(regions, m.regions[i])
	}
	return regions
}

// Within returns the regions lying entirely inside r.
func (m *Map) Within(r Interval) []Region {
	var regions []Region
	for _, region := range m.Overlapping(r) {
		if within(region, r) {
			regions = append(regions, region)
		}
	}
	return regions
}

// WithCoverage returns the regions covered by exactly depth intervals.
func (m *Map) WithCoverage(depth int) []Region {
	return m.filter(func(r Region) bool { return r.Coverage() == depth })
}

// WithCoverageAtLeast returns the regions covered by depth or more
// intervals.
func (m *Map) WithCoverageAtLeast(depth int) []Region {
	return m.filter(func(r Region) bool { return r.Coverage() >= depth })
}

func (m *Map) filter(keep func(Region) bool) []Region {
	var regions []Region
	for _, r := range m.regions {
		if keep(r) {
			regions = append(regions, r)
		}
	}
	return regions
}

// String returns a human readable description of the receiver.
func (m *Map) String() string {
	parts := make([]string, len(m.regions))
	for i, r := range m.regions {
		parts[i] = r.String()
	}
	return "{" + strings.Join(parts, " ") + "}"
}
