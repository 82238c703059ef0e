package main

import (
	"os"

	"github.com/moneytime-app/moneytime/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
