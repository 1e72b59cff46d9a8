package main

import (
	"os"
)

// Version information, set at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := buildRootCommand().Execute(); err != nil {
		return 1
	}
	return 0
}
