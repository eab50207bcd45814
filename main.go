// Package main is the entry point of the benchtrail CLI.
package main

import (
	"os"

	"github.com/huangsam/benchtrail/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
