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
	"errors"
	"fmt"
)

var (
	// ErrEmptyMap is returned by statistics that have no meaningful value for
	// a map without regions.
	ErrEmptyMap = errors.New("coverage map is empty")

	// ErrInvalidCeiling is returned by Build when the maximum coverage option
	// is not positive.
	ErrInvalidCeiling = errors.New("maximum coverage must be at least 1")

	// ErrBuilderReused is returned when Build is called more than once.
	ErrBuilderReused = errors.New("builder has already been used")
)

// InvalidIntervalError reports an input interval whose start lies after its
// end, or whose end is math.MaxInt64 and so has no following position.  It
// indicates a problem in whatever produced the intervals; the builder never
// repairs such coordinates.
type InvalidIntervalError struct {
	// Index is the position of the offending interval in the builder input.
	Index      int
	Start, End int64
}

func (err *InvalidIntervalError) Error() string {
	if err.Start > err.End {
		return fmt.Sprintf("interval %d is invalid: start %d > end %d", err.Index, err.Start, err.End)
	}
	return fmt.Sprintf("interval %d is invalid: end %d is the largest representable position", err.Index, err.End)
}

// IndexOutOfRangeError reports a region index outside [0, Len()).
type IndexOutOfRangeError struct {
	Index, Len int
}

func (err *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("region index %d out of range [0, %d)", err.Index, err.Len)
}
