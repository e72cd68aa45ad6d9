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

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// objectSeeker implements io.ReadSeeker on top of ranged reads of an object.
// A new range reader is opened whenever a seek moves the read position.
type objectSeeker struct {
	ctx    context.Context
	object ObjectHandle
	offset int64
	r      io.ReadCloser
}

// openObjectSeeker returns an objectSeeker positioned at the start of object.
// The first range read is issued immediately so that storage errors surface
// here rather than from the first Read.
func openObjectSeeker(ctx context.Context, object ObjectHandle) (*objectSeeker, error) {
	r, err := object.NewRangeReader(ctx, 0, -1)
	if err != nil {
		return nil, err
	}
	return &objectSeeker{ctx: ctx, object: object, r: r}, nil
}

func (s *objectSeeker) Read(p []byte) (int, error) {
	if s.r == nil {
		r, err := s.object.NewRangeReader(s.ctx, s.offset, -1)
		if err != nil {
			return 0, fmt.Errorf("reading from offset %d: %v", s.offset, err)
		}
		s.r = r
	}
	n, err := s.r.Read(p)
	s.offset += int64(n)
	return n, err
}

func (s *objectSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += s.offset
	default:
		return s.offset, errors.New("seeking relative to the end is not supported")
	}
	if offset < 0 {
		return s.offset, fmt.Errorf("negative offset %d", offset)
	}
	if offset != s.offset {
		if err := s.Close(); err != nil {
			return s.offset, err
		}
		s.offset = offset
	}
	return s.offset, nil
}

// Close releases the current range reader, if any.
func (s *objectSeeker) Close() error {
	if s.r == nil {
		return nil
	}
	err := s.r.Close()
	s.r = nil
	return err
}
