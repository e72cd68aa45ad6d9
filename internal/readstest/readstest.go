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

// Package readstest builds small alignment files for tests.
package readstest

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
)

// EncodeBAM converts the SAM text samText to BAM and builds a BAI index for
// it.  Records that are unplaced or consume no reference bases are left out
// of the index.
func EncodeBAM(t testing.TB, samText string) (data, bai []byte) {
	t.Helper()
	sr, err := sam.NewReader(strings.NewReader(samText))
	if err != nil {
		t.Fatalf("Failed to parse test SAM: %v", err)
	}

	var buf bytes.Buffer
	bw, err := bam.NewWriter(&buf, sr.Header(), 1)
	if err != nil {
		t.Fatalf("Failed to create BAM writer: %v", err)
	}
	for {
		rec, err := sr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Failed to read test SAM: %v", err)
		}
		if err := bw.Write(rec); err != nil {
			t.Fatalf("Failed to write record %s: %v", rec.Name, err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("Failed to close BAM writer: %v", err)
	}

	br, err := bam.NewReader(bytes.NewReader(buf.Bytes()), 1)
	if err != nil {
		t.Fatalf("Failed to reopen BAM: %v", err)
	}
	defer br.Close()
	var index bam.Index
	for {
		rec, err := br.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Failed to read BAM: %v", err)
		}
		if rec.Ref == nil || rec.End() <= rec.Start() {
			continue
		}
		if err := index.Add(rec, br.LastChunk()); err != nil {
			t.Fatalf("Failed to index %s: %v", rec.Name, err)
		}
	}
	var idx bytes.Buffer
	if err := bam.WriteIndex(&idx, &index); err != nil {
		t.Fatalf("Failed to write index: %v", err)
	}
	return buf.Bytes(), idx.Bytes()
}
