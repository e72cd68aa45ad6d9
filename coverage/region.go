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

import "fmt"

// Region is a maximal run of positions covered by exactly the same set of
// intervals.  Regions are values and never change after a Map is built.
type Region struct {
	start, end int64
	elements   []Interval
}

// Start returns the first position in the region.
func (r Region) Start() int64 { return r.start }

// End returns the last position in the region.
func (r Region) End() int64 { return r.end }

// Length returns the number of positions in the region.
func (r Region) Length() int64 { return r.end - r.start + 1 }

// Coverage returns the number of intervals covering every position of r.
func (r Region) Coverage() int { return len(r.elements) }

// Elements returns the intervals covering r, in order of increasing start.
// The returned slice is a copy.
func (r Region) Elements() []Interval {
	return append([]Interval(nil), r.elements...)
}

// Contains reports whether pos lies inside r.
func (r Region) Contains(pos int64) bool {
	return r.start <= pos && pos <= r.end
}

// String returns a human readable description of the receiver.
func (r Region) String() string {
	return fmt.Sprintf("[%d-%d]x%d", r.start, r.end, len(r.elements))
}

type regionState int

const (
	regionOpen regionState = iota
	regionClosed
)

// regionBuilder accumulates a region during the sweep.  Its start and members
// are fixed when it is opened; the end is only known once the next boundary
// is reached.  members holds entering ranks, not intervals.
type regionBuilder struct {
	state   regionState
	start   int64
	end     int64
	members []int
}

func openRegion(start int64, members []int) *regionBuilder {
	return &regionBuilder{state: regionOpen, start: start, members: members}
}

func (b *regionBuilder) close(end int64) {
	if b.state != regionOpen {
		panic(fmt.Sprintf("coverage: region starting at %d closed twice", b.start))
	}
	b.end = end
	b.state = regionClosed
}

// empty reports whether a closed builder spans no positions.
func (b *regionBuilder) empty() bool {
	return b.end < b.start
}

func (b *regionBuilder) build(byRank []Interval) Region {
	elements := make([]Interval, len(b.members))
	for i, rank := range b.members {
		elements[i] = byRank[rank]
	}
	return Region{b.start, b.end, elements}
}
