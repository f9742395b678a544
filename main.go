package main

import (
	"os"

	"github.com/scan-io-git/taint-io/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}
