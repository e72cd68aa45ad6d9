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
	"fmt"
	"io"

	"github.com/biogo/hts/sam"
	"github.com/googlegenomics/coverage/internal/genomics"
	"github.com/googlegenomics/coverage/internal/reads"
	"github.com/googlegenomics/coverage/internal/report"
)

type coverageRequest struct {
	data         ObjectHandle
	indexObjects []ObjectHandle
	format       string
	params       coverageParams
	sizeLimit    int64
}

func (req *coverageRequest) handle(ctx context.Context) ([]report.Reference, error) {
	if req.params.referenceName != "" {
		for _, object := range req.indexObjects {
			index, err := object.NewRangeReader(ctx, 0, -1)
			if err != nil {
				continue
			}
			defer index.Close()
			return req.handleIndexed(ctx, index)
		}
	}
	return req.handleStream(ctx)
}

// handleIndexed reads only the chunks of the data object that the index
// associates with the requested region.
func (req *coverageRequest) handleIndexed(ctx context.Context, index io.Reader) ([]report.Reference, error) {
	data, err := openObjectSeeker(ctx, req.data)
	if err != nil {
		return nil, newStorageError("opening data", err)
	}
	defer data.Close()

	ir, err := reads.OpenIndexed(data, index)
	if err != nil {
		return nil, fmt.Errorf("opening indexed data: %v", err)
	}

	region, err := req.resolve(ir)
	if err != nil {
		ir.Close()
		return nil, err
	}

	r, err := ir.Query(region)
	if err != nil {
		ir.Close()
		return nil, fmt.Errorf("querying index: %v", err)
	}
	defer r.Close()

	return req.summarize(r, region)
}

// handleStream reads the whole data object, up to the size limit.
func (req *coverageRequest) handleStream(ctx context.Context) ([]report.Reference, error) {
	object, err := req.data.NewRangeReader(ctx, 0, -1)
	if err != nil {
		return nil, newStorageError("opening data", err)
	}
	defer object.Close()

	data := &sizeLimitedReader{r: object, remaining: req.sizeLimit}
	if req.sizeLimit <= 0 {
		data.remaining = -1
	}

	r, err := reads.Open(data, req.format)
	if err != nil {
		return nil, data.check(err)
	}
	defer r.Close()

	region, err := req.resolve(r)
	if err != nil {
		return nil, err
	}

	refs, err := req.summarize(r, region)
	if err != nil {
		return nil, data.check(err)
	}
	return refs, nil
}

type headerReader interface {
	Header() *sam.Header
}

// resolve maps the requested reference name onto an ID of the file header.
func (req *coverageRequest) resolve(h headerReader) (genomics.Region, error) {
	if req.params.referenceName == "" {
		return genomics.AllMappedReads, nil
	}
	id, err := reads.ReferenceID(h.Header(), req.params.referenceName)
	if err != nil {
		return genomics.Region{}, newInvalidInputError("resolving reference", err)
	}
	return genomics.Region{ReferenceID: id, Start: req.params.start, End: req.params.end}, nil
}

func (req *coverageRequest) summarize(r reads.Reader, region genomics.Region) ([]report.Reference, error) {
	groups, err := reads.Collect(r, region, reads.DefaultFilter, 0)
	if err != nil {
		return nil, fmt.Errorf("collecting reads: %v", err)
	}

	refs, err := report.Build(r.Header(), groups, region, report.Options{
		MaxCoverage:  req.params.maxCoverage,
		IncludeReads: req.params.includeReads,
	})
	if err != nil {
		return nil, fmt.Errorf("building report: %v", err)
	}
	return refs, nil
}

// sizeLimitedReader fails once more than remaining bytes have been read from
// r.  A negative remaining means no limit.
type sizeLimitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *sizeLimitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return l.r.Read(p)
	}
	if l.remaining == 0 {
		var probe [1]byte
		if n, err := l.r.Read(probe[:]); n == 0 {
			if err == nil {
				err = io.ErrNoProgress
			}
			return 0, err
		}
		l.exceeded = true
		return 0, errSizeLimitExceeded
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}

// check replaces err with an InvalidRange error if the size limit caused it.
func (l *sizeLimitedReader) check(err error) error {
	if l.exceeded {
		return newInvalidRangeError(errSizeLimitExceeded)
	}
	return err
}
