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

// Package genomics contains definitions related to Genomic data.
package genomics

import (
	"fmt"

	"github.com/googlegenomics/coverage/coverage"
)

// AllMappedReads defines a Region that matches all mapped reads.
var AllMappedReads = Region{ReferenceID: -1}

// Region defines a region of genomic interest.
type Region struct {
	// ReferenceID specifies the reference to match.  If it is negative, any
	// reference matches the region.
	ReferenceID int32
	// Start and End specify the open range (in base pairs) relative to the
	// reference.  If End is zero, it is treated as though it was set to the last
	// possible read position.
	Start, End uint32
}

func (region Region) String() string {
	return fmt.Sprintf("[region:%d, start:%d, end:%d]", region.ReferenceID, region.Start, region.End)
}

// Bounds returns the half-open bounds of region on a reference of the given
// length, resolving a zero End.
func (region Region) Bounds(length int) (int, int) {
	end := int(region.End)
	if end == 0 || end > length {
		end = length
	}
	return int(region.Start), end
}

// Range returns the positions of region on a reference of the given length
// as a closed coverage range.
func (region Region) Range(length int) coverage.Range {
	start, end := region.Bounds(length)
	return coverage.NewRange(int64(start), int64(end)-1)
}

// Overlaps reports whether read shares at least one position with region.
func (region Region) Overlaps(read Read) bool {
	if region.ReferenceID >= 0 && read.ReferenceID != region.ReferenceID {
		return false
	}
	if read.Last < int64(region.Start) {
		return false
	}
	return region.End == 0 || read.Pos < int64(region.End)
}

// Read is an alignment placed on a reference.  Pos and Last are zero based
// and inclusive, so a Read can be used directly as a coverage.Interval.
type Read struct {
	Name        string
	ReferenceID int32
	Pos, Last   int64
}

// Start returns the first reference position covered by the read.
func (read Read) Start() int64 { return read.Pos }

// End returns the last reference position covered by the read.
func (read Read) End() int64 { return read.Last }

func (read Read) String() string {
	return fmt.Sprintf("%s@%d:[%d-%d]", read.Name, read.ReferenceID, read.Pos, read.Last)
}
