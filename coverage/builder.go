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
	"math"
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// Builder computes a Map from a collection of intervals.  A Builder is meant
// to be used once, from a single goroutine; Build fails if called again.
type Builder struct {
	intervals []Interval

	limited     bool
	maxCoverage int

	built bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithMaxCoverage caps the number of intervals that may cover any position.
// While limit intervals are covering the sweep position, further entering
// intervals are ignored entirely: they never appear in any region, not even
// after the coverage later drops below the limit.
//
// When more intervals share a start than there is room for, those earliest
// in the input are admitted.  A capped map therefore depends on input order
// among intervals with equal starts; without such ties it does not.
func WithMaxCoverage(limit int) Option {
	return func(b *Builder) {
		b.limited = true
		b.maxCoverage = limit
	}
}

// NewBuilder returns a Builder for the provided intervals.  The intervals
// need not be sorted.  The slice is copied but the intervals themselves are
// retained and returned by Region.Elements.
func NewBuilder(intervals []Interval, opts ...Option) *Builder {
	b := &Builder{intervals: append([]Interval(nil), intervals...)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build validates the input and returns the coverage map.  An empty input
// produces an empty map.  If any interval has a start after its end, or ends
// at math.MaxInt64, Build returns an *InvalidIntervalError and no map.
func (b *Builder) Build() (*Map, error) {
	if b.built {
		return nil, ErrBuilderReused
	}
	b.built = true

	if b.limited && b.maxCoverage < 1 {
		return nil, ErrInvalidCeiling
	}
	for i, iv := range b.intervals {
		// Intervals leave the sweep at End()+1.
		if iv.Start() > iv.End() || iv.End() == math.MaxInt64 {
			return nil, &InvalidIntervalError{Index: i, Start: iv.Start(), End: iv.End()}
		}
	}
	if len(b.intervals) == 0 {
		return &Map{}, nil
	}

	s := newSweep(b.intervals, b.maxCoverage)
	builders := finish(s.run())

	regions := make([]Region, len(builders))
	for i, rb := range builders {
		regions[i] = rb.build(s.byRank)
	}
	return &Map{regions: regions}, nil
}

// sweep holds the transient state of a single Build.  Intervals are referred
// to by their rank in entering order (start ascending, ties in input order),
// which is also the order their members are reported in.
type sweep struct {
	byRank       []Interval
	starts, ends []int64
	leaving      []int

	covering *bitset.BitSet
	depth    int
	limit    int

	regions []*regionBuilder
}

func newSweep(intervals []Interval, limit int) *sweep {
	n := len(intervals)
	entering := make([]int, n)
	for i := range entering {
		entering[i] = i
	}
	sort.SliceStable(entering, func(i, j int) bool {
		return intervals[entering[i]].Start() < intervals[entering[j]].Start()
	})

	s := &sweep{
		byRank:   make([]Interval, n),
		starts:   make([]int64, n),
		ends:     make([]int64, n),
		leaving:  make([]int, n),
		covering: bitset.New(uint(n)),
		limit:    limit,
	}
	for rank, i := range entering {
		s.byRank[rank] = intervals[i]
		s.starts[rank] = intervals[i].Start()
		s.ends[rank] = intervals[i].End()
		s.leaving[rank] = rank
	}
	sort.SliceStable(s.leaving, func(i, j int) bool {
		return s.ends[s.leaving[i]] < s.ends[s.leaving[j]]
	})
	return s
}

// run processes boundary events in coordinate order.  An interval enters at
// its start and leaves at end+1.  All events at one coordinate are applied
// together, leaves before enters, so that abutting intervals hand over
// without an empty region between them.
func (s *sweep) run() []*regionBuilder {
	var next, last int
	for next < len(s.byRank) {
		pos := s.starts[next]
		if leave := s.ends[s.leaving[last]] + 1; leave < pos {
			pos = leave
		}
		left := s.leaveAt(pos, &last)
		entered := s.enterAt(pos, &next)
		if left || entered {
			s.boundary(pos)
		}
	}

	// Unwind whatever is still covering once every interval has entered.
	for last < len(s.leaving) {
		pos := s.ends[s.leaving[last]] + 1
		if s.leaveAt(pos, &last) {
			s.boundary(pos)
		}
	}
	return s.regions
}

func (s *sweep) leaveAt(pos int64, last *int) bool {
	var changed bool
	for ; *last < len(s.leaving) && s.ends[s.leaving[*last]]+1 == pos; *last++ {
		rank := uint(s.leaving[*last])
		if !s.covering.Test(rank) {
			continue // rejected by the coverage limit
		}
		s.covering.Clear(rank)
		s.depth--
		changed = true
	}
	return changed
}

func (s *sweep) enterAt(pos int64, next *int) bool {
	var changed bool
	for ; *next < len(s.byRank) && s.starts[*next] == pos; *next++ {
		if s.limit > 0 && s.depth >= s.limit {
			continue
		}
		s.covering.Set(uint(*next))
		s.depth++
		changed = true
	}
	return changed
}

// boundary closes the current region just before pos and opens a new one
// holding the current covering set.
func (s *sweep) boundary(pos int64) {
	if n := len(s.regions); n > 0 {
		s.regions[n-1].close(pos - 1)
	}
	members := make([]int, 0, s.depth)
	for i, ok := s.covering.NextSet(0); ok; i, ok = s.covering.NextSet(i + 1) {
		members = append(members, int(i))
	}
	s.regions = append(s.regions, openRegion(pos, members))
}

// finish drops the trailing region, which the sweep opens after the last
// interval leaves and never closes, and any region of zero length.
func finish(builders []*regionBuilder) []*regionBuilder {
	if len(builders) == 0 {
		return nil
	}
	builders = builders[:len(builders)-1]

	kept := builders[:0]
	for _, b := range builders {
		if !b.empty() {
			kept = append(kept, b)
		}
	}
	return kept
}
