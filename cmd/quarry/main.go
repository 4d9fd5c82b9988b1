// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"os"

	quarryerr "github.com/sigil-dev/quarry/pkg/errors"
)

// exitUsage is returned for bad flags or arguments.
const exitUsage = 2

func main() {
	os.Exit(run())
}

func run() int {
	err := NewRootCmd().Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	if quarryerr.HasCode(err, quarryerr.CodeCLIInputInvalid) {
		return exitUsage
	}
	return 1
}
