package main

import (
	"os"

	"github.com/vitalvas/jwsdetached/cmd/jwsdetached/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
