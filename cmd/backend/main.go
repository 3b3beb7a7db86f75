package main

import (
	"os"
)

// Set at build time:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=$(git rev-parse --short HEAD)"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd(serve).Execute(); err != nil {
		os.Exit(1)
	}
}
