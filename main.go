package main

import (
	"os"

	"github.com/maastricht-university/samediff-pipeline/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
