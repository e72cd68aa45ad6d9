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

// This binary fetches coverage reports using Google authentication and writes
// their regions as tab separated values.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/googlegenomics/coverage/internal/report"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	scope = "https://www.googleapis.com/auth/devstorage.read_only"
)

var (
	reference   = flag.String("r", "", "reference name")
	start       = flag.Int64("start", -1, "first position of the range, zero based")
	end         = flag.Int64("end", -1, "position following the range")
	maxCoverage = flag.Int("max_coverage", 0, "if positive, the deepest coverage to count")
	withReads   = flag.Bool("reads", false, "list the reads covering each region")
	output      = flag.String("o", "", "output filename")
)

func main() {
	flag.Parse()

	w := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to open output file: %v", err)
		}
		defer f.Close()

		w = f
	}

	ctx := context.Background()

	// For compatibility with other tools, read the standard cURL certificate
	// authority override from the environment.
	if bundle := os.Getenv("CURL_CA_BUNDLE"); bundle != "" {
		pem, err := ioutil.ReadFile(bundle)
		if err != nil {
			log.Fatalf("Failed to read CA override file %q: %v", bundle, err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			log.Fatalf("Failed to initialize system certificate pool: %v", err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			log.Fatalf("Failed to add certificates from bundle %q", bundle)
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					RootCAs: pool,
				}},
		})
		log.Printf("Using CA override bundle from %q", bundle)
	}

	client, err := google.DefaultClient(ctx, scope)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	if err := writeHeader(w, *withReads); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
	for _, target := range flag.Args() {
		target = addParameters(target, parameters())
		log.Printf("Fetching %q", target)

		response, err := fetch(client, target)
		if err != nil {
			log.Fatalf("Request failed: %v", err)
		}
		for _, ref := range response.Coverage.References {
			log.Printf("%s: %d reads, %d regions, average coverage %.2f",
				ref.Name, ref.Reads, len(ref.Regions), ref.AverageCoverage)
		}
		if err := writeRegions(w, response, *withReads); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
	}
}

// parameters returns the query parameters selected by the command line flags.
func parameters() url.Values {
	values := url.Values{}
	if *reference != "" {
		values.Set("referenceName", *reference)
	}
	if *start >= 0 {
		values.Set("start", strconv.FormatInt(*start, 10))
	}
	if *end >= 0 {
		values.Set("end", strconv.FormatInt(*end, 10))
	}
	if *maxCoverage > 0 {
		values.Set("maxCoverage", strconv.Itoa(*maxCoverage))
	}
	if *withReads {
		values.Set("reads", "true")
	}
	return values
}

func addParameters(input string, values url.Values) string {
	if len(values) == 0 {
		return input
	}
	if strings.Contains(input, "?") {
		return input + "&" + values.Encode()
	}
	return input + "?" + values.Encode()
}

func fetch(client *http.Client, target string) (*report.Response, error) {
	resp, err := client.Get(target)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp)
	}

	var response report.Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding response: %v", err)
	}
	return &response, nil
}

func writeHeader(w io.Writer, withReads bool) error {
	header := "referenceName\tstart\tend\tcoverage"
	if withReads {
		header += "\treads"
	}
	_, err := fmt.Fprintln(w, header)
	return err
}

// writeRegions writes one line per region.  Start and end are zero based and
// inclusive.
func writeRegions(w io.Writer, response *report.Response, withReads bool) error {
	for _, ref := range response.Coverage.References {
		for _, region := range ref.Regions {
			line := fmt.Sprintf("%s\t%d\t%d\t%d", ref.Name, region.Start, region.End, region.Coverage)
			if withReads {
				line += "\t" + strings.Join(region.Reads, ",")
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func errorFromResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnauthorized:
		v := make(map[string]string)
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return fmt.Errorf("%s: parsing response body: %v", resp.Status, err)
		}
		if message, ok := v["message"]; ok {
			return fmt.Errorf("%s: %v", v["error"], message)
		}
	}
	return fmt.Errorf("unexpected response status: %q", resp.Status)
}
