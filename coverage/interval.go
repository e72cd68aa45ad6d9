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

// Package coverage computes coverage maps: the partition of a reference
// coordinate span into maximal regions over which the set of covering
// intervals (typically placed reads) does not change.
//
// All coordinates are inclusive.  A Map is immutable once built and may be
// shared between goroutines without further synchronization.
package coverage

import "fmt"

// Interval is anything placed on a shared integer coordinate axis.  Both
// Start and End are inclusive and a well formed interval has Start <= End.
type Interval interface {
	Start() int64
	End() int64
}

// Range is a closed interval [start, end].  The zero value is the single
// position 0.
type Range struct {
	start, end int64
}

// NewRange returns the closed interval [start, end].  It does not validate
// its arguments; a Range with start > end contains no positions.
func NewRange(start, end int64) Range {
	return Range{start, end}
}

// Start returns the first position in r.
func (r Range) Start() int64 { return r.start }

// End returns the last position in r.
func (r Range) End() int64 { return r.end }

// Length returns the number of positions in r.
func (r Range) Length() int64 {
	if r.end < r.start {
		return 0
	}
	return r.end - r.start + 1
}

// Contains reports whether pos lies inside r.
func (r Range) Contains(pos int64) bool {
	return r.start <= pos && pos <= r.end
}

// Overlaps reports whether r and other share at least one position.
func (r Range) Overlaps(other Interval) bool {
	return overlaps(r, other)
}

// String returns a human readable description of the receiver.
func (r Range) String() string {
	return fmt.Sprintf("[%d-%d]", r.start, r.end)
}

func overlaps(a, b Interval) bool {
	return a.Start() <= a.End() && b.Start() <= b.End() &&
		a.Start() <= b.End() && b.Start() <= a.End()
}

func within(inner, outer Interval) bool {
	return outer.Start() <= inner.Start() && inner.End() <= outer.End()
}
