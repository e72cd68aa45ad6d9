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

package utils

import (
	"github.com/biogo/hts/sam"
	"github.com/googlegenomics/coverage/internal/genomics"
	"github.com/googlegenomics/coverage/internal/reads"
)

// Region resolves the requested reference against h.
func (p Params) Region(h *sam.Header) (genomics.Region, error) {
	if p.ReferenceName == "" {
		return genomics.AllMappedReads, nil
	}
	id, err := reads.ReferenceID(h, p.ReferenceName)
	if err != nil {
		return genomics.Region{}, err
	}
	return genomics.Region{ReferenceID: id, Start: p.Start, End: p.End}, nil
}
