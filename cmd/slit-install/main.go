package main

import (
	"os"

	"github.com/slitos/slit-install/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
