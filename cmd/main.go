package main

import (
	"os"

	"github.com/soundprediction/semroute/cmd/semroute"
)

func main() {
	if err := semroute.Execute(); err != nil {
		os.Exit(1)
	}
}
