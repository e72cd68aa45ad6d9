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

// Statistics over an empty map: the averages and SpanLength are zero, while
// MinCoverage and MaxCoverage return ErrEmptyMap.

// AverageCoverage returns the mean depth over every position in the span of
// m, or 0 if m is empty.
func (m *Map) AverageCoverage() float64 {
	length := m.SpanLength()
	if length == 0 {
		return 0
	}
	var total int64
	for _, r := range m.regions {
		total += int64(r.Coverage()) * r.Length()
	}
	return float64(total) / float64(length)
}

// AverageCoverageWithin returns the mean depth over the positions of r that
// lie inside the span of m, or 0 if there are none.
func (m *Map) AverageCoverageWithin(r Interval) float64 {
	var total, length int64
	for _, region := range m.Overlapping(r) {
		n := min(region.end, r.End()) - max(region.start, r.Start()) + 1
		total += int64(region.Coverage()) * n
		length += n
	}
	if length == 0 {
		return 0
	}
	return float64(total) / float64(length)
}

// MinCoverage returns the smallest region depth in m.
func (m *Map) MinCoverage() (int, error) {
	if len(m.regions) == 0 {
		return 0, ErrEmptyMap
	}
	depth := m.regions[0].Coverage()
	for _, r := range m.regions[1:] {
		depth = min(depth, r.Coverage())
	}
	return depth, nil
}

// MaxCoverage returns the largest region depth in m.
func (m *Map) MaxCoverage() (int, error) {
	if len(m.regions) == 0 {
		return 0, ErrEmptyMap
	}
	depth := m.regions[0].Coverage()
	for _, r := range m.regions[1:] {
		depth = max(depth, r.Coverage())
	}
	return depth, nil
}

// LengthWithCoverage returns the number of positions covered by exactly
// depth intervals.
func (m *Map) LengthWithCoverage(depth int) int64 {
	return totalLength(m.WithCoverage(depth))
}

// LengthWithCoverageAtLeast returns the number of positions covered by depth
// or more intervals.
func (m *Map) LengthWithCoverageAtLeast(depth int) int64 {
	return totalLength(m.WithCoverageAtLeast(depth))
}

// CountWithCoverage returns the number of regions with exactly depth.
func (m *Map) CountWithCoverage(depth int) int {
	return len(m.WithCoverage(depth))
}

// CountWithCoverageAtLeast returns the number of regions with depth or more.
func (m *Map) CountWithCoverageAtLeast(depth int) int {
	return len(m.WithCoverageAtLeast(depth))
}

// CoverageHistogram maps each depth present in m to the number of positions
// at that depth.
func (m *Map) CoverageHistogram() map[int]int64 {
	histogram := make(map[int]int64)
	for _, r := range m.regions {
		histogram[r.Coverage()] += r.Length()
	}
	return histogram
}

// RegionCountsByCoverage maps each depth present in m to the number of
// regions with that depth.
func (m *Map) RegionCountsByCoverage() map[int]int {
	counts := make(map[int]int)
	for _, r := range m.regions {
		counts[r.Coverage()]++
	}
	return counts
}

// RangesBelow returns the maximal runs of positions whose depth is less than
// depth.  Adjacent low regions are merged into a single range.
func (m *Map) RangesBelow(depth int) []Range {
	var ranges []Range
	for i, r := range m.regions {
		if r.Coverage() >= depth {
			continue
		}
		if n := len(ranges); n > 0 && i > 0 && m.regions[i-1].Coverage() < depth {
			ranges[n-1].end = r.end
			continue
		}
		ranges = append(ranges, Range{r.start, r.end})
	}
	return ranges
}

// TrimmedRange returns the range from the first to the last position whose
// depth is at least minDepth.  Positions outside the range are the poorly
// supported ends of the span.  It returns false if no position qualifies.
func (m *Map) TrimmedRange(minDepth int) (Range, bool) {
	first, last := -1, -1
	for i, r := range m.regions {
		if r.Coverage() >= minDepth {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return Range{}, false
	}
	return Range{m.regions[first].start, m.regions[last].end}, true
}

func totalLength(regions []Region) int64 {
	var length int64
	for _, r := range regions {
		length += r.Length()
	}
	return length
}
