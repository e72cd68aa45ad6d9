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

// Package reads turns SAM and BAM alignment records into placed reads that
// can be fed to a coverage.Builder.
package reads

import (
	"errors"
	"fmt"
	"io"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/googlegenomics/coverage/coverage"
	"github.com/googlegenomics/coverage/internal/genomics"
)

var (
	// ErrUnsupportedFormat is returned for formats other than BAM and SAM.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrTooManyReads is returned by Collect when the read limit is exceeded.
	ErrTooManyReads = errors.New("too many reads")
)

// Reader is a source of alignment records.
type Reader interface {
	Header() *sam.Header
	Read() (*sam.Record, error)
	Close() error
}

// ParseFormat validates format and returns its canonical name.  An empty
// format means BAM.
func ParseFormat(format string) (string, error) {
	switch format {
	case "", "BAM":
		return "BAM", nil
	case "SAM":
		return "SAM", nil
	}
	return "", fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
}

// Open returns a Reader that reads every record of r in the given format.
func Open(r io.Reader, format string) (Reader, error) {
	format, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	if format == "SAM" {
		sr, err := sam.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("reading SAM header: %v", err)
		}
		return samReader{sr}, nil
	}
	br, err := bam.NewReader(r, 1)
	if err != nil {
		return nil, fmt.Errorf("reading BAM header: %v", err)
	}
	return br, nil
}

// IndexedReader provides random access to a BAM file through its BAI index.
type IndexedReader struct {
	br    *bam.Reader
	index *bam.Index
}

// OpenIndexed reads the header of the BAM file data and the index bai.
func OpenIndexed(data io.ReadSeeker, bai io.Reader) (*IndexedReader, error) {
	br, err := bam.NewReader(data, 1)
	if err != nil {
		return nil, fmt.Errorf("reading BAM header: %v", err)
	}
	index, err := bam.ReadIndex(bai)
	if err != nil {
		br.Close()
		return nil, fmt.Errorf("reading index: %v", err)
	}
	return &IndexedReader{br, index}, nil
}

// Header returns the BAM header.
func (ir *IndexedReader) Header() *sam.Header { return ir.br.Header() }

// Query returns a Reader over the records that the index associates with
// region.  Records outside region may still be returned; Collect discards
// them.  Closing the returned Reader closes ir.
func (ir *IndexedReader) Query(region genomics.Region) (Reader, error) {
	if region.ReferenceID < 0 {
		return ir.br, nil
	}

	refs := ir.br.Header().Refs()
	if int(region.ReferenceID) >= len(refs) {
		return nil, fmt.Errorf("no reference with ID %d", region.ReferenceID)
	}
	ref := refs[region.ReferenceID]
	start, end := region.Bounds(ref.Len())
	if start >= end {
		return &chunkReader{br: ir.br}, nil
	}

	chunks, err := ir.index.Chunks(ref, start, end)
	if err != nil {
		return nil, fmt.Errorf("selecting chunks: %v", err)
	}
	if len(chunks) == 0 {
		return &chunkReader{br: ir.br}, nil
	}
	it, err := bam.NewIterator(ir.br, chunks)
	if err != nil {
		return nil, fmt.Errorf("seeking to first chunk: %v", err)
	}
	return &chunkReader{ir.br, it}, nil
}

// Close releases the underlying BAM reader.
func (ir *IndexedReader) Close() error { return ir.br.Close() }

// ReferenceID returns the ID of the named reference in h.
func ReferenceID(h *sam.Header, name string) (int32, error) {
	for _, ref := range h.Refs() {
		if ref.Name() == name {
			return int32(ref.ID()), nil
		}
	}
	return 0, fmt.Errorf("no reference named %q found", name)
}

type samReader struct {
	*sam.Reader
}

func (samReader) Close() error { return nil }

// chunkReader reads the records inside a set of BAM chunks.  A nil iterator
// means there are no chunks to read.
type chunkReader struct {
	br *bam.Reader
	it *bam.Iterator
}

func (r *chunkReader) Header() *sam.Header { return r.br.Header() }

func (r *chunkReader) Read() (*sam.Record, error) {
	if r.it == nil {
		return nil, io.EOF
	}
	if r.it.Next() {
		return r.it.Record(), nil
	}
	if err := r.it.Error(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (r *chunkReader) Close() error {
	if r.it != nil {
		r.it.Close()
	}
	return r.br.Close()
}

// Filter selects the records that contribute to coverage.
type Filter struct {
	// MinMapQ is the lowest mapping quality accepted.
	MinMapQ byte

	SkipDuplicates    bool
	SkipSecondary     bool
	SkipSupplementary bool
	SkipQCFail        bool
}

// DefaultFilter counts each primary, passing, non-duplicate alignment once.
var DefaultFilter = Filter{
	SkipDuplicates:    true,
	SkipSecondary:     true,
	SkipSupplementary: true,
	SkipQCFail:        true,
}

// Accept reports whether rec passes f.  Unmapped records never pass.
func (f Filter) Accept(rec *sam.Record) bool {
	switch {
	case rec.Flags&sam.Unmapped != 0:
		return false
	case f.SkipDuplicates && rec.Flags&sam.Duplicate != 0:
		return false
	case f.SkipSecondary && rec.Flags&sam.Secondary != 0:
		return false
	case f.SkipSupplementary && rec.Flags&sam.Supplementary != 0:
		return false
	case f.SkipQCFail && rec.Flags&sam.QCFail != 0:
		return false
	}
	return rec.MapQ >= f.MinMapQ
}

// Placement returns the reference span of rec.  It returns false for records
// that are not placed or whose alignment consumes no reference bases.
func Placement(rec *sam.Record) (genomics.Read, bool) {
	if rec.Ref == nil || rec.Pos < 0 {
		return genomics.Read{}, false
	}
	end := rec.End()
	if end <= rec.Pos {
		return genomics.Read{}, false
	}
	return genomics.Read{
		Name:        rec.Name,
		ReferenceID: int32(rec.Ref.ID()),
		Pos:         int64(rec.Pos),
		Last:        int64(end - 1),
	}, true
}

// Collect reads every record from r and returns the placed reads that pass
// filter and overlap region, grouped by reference ID.  If limit is positive
// and more than limit reads are collected, Collect returns ErrTooManyReads.
func Collect(r Reader, region genomics.Region, filter Filter, limit int) (map[int32][]coverage.Interval, error) {
	groups := make(map[int32][]coverage.Interval)
	var count int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return groups, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading record: %v", err)
		}
		if !filter.Accept(rec) {
			continue
		}
		read, ok := Placement(rec)
		if !ok || !region.Overlaps(read) {
			continue
		}
		if count++; limit > 0 && count > limit {
			return nil, ErrTooManyReads
		}
		groups[read.ReferenceID] = append(groups[read.ReferenceID], read)
	}
}
