package main

import (
	"os"

	"regform/cmd/regctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
