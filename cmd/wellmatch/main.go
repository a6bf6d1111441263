package main

import (
	"os"

	"github.com/raaihank/wellmatch/internal/app"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if app.IsQueryError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
