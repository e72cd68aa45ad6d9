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

// This binary serves coverage reports for alignment files in a local
// directory.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/googlegenomics/coverage/coverage-local-server/file"
)

var (
	port      = flag.Int("port", 8080, "HTTP service port")
	maxReads  = flag.Int("max_reads", 0, "if positive, the largest number of reads a request may cover")
	directory = flag.String("directory", "", "directory that contains bam/bai and sam files")

	secure    = flag.Bool("secure", false, "serve in HTTPS-only mode")
	httpsCert = flag.String("https_cert", "", "HTTPS certificate file")
	httpsKey  = flag.String("https_key", "", "HTTPS key file")
)

func main() {
	flag.Parse()

	if *directory == "" {
		log.Fatalf("You must specify -directory.")
	}
	if *secure && (*httpsCert == "" || *httpsKey == "") {
		log.Fatalf("You must specify both -https_cert and -https_key in secure mode.")
	}

	router := gin.Default()
	router.GET("/coverage/:id", file.NewCoverageHandler(*directory, *maxReads))

	address := fmt.Sprintf(":%d", *port)
	var err error
	if *secure {
		err = router.RunTLS(address, *httpsCert, *httpsKey)
	} else {
		err = router.Run(address)
	}
	if err != nil {
		log.Fatalf("Server returned an error: %v", err)
	}
}
