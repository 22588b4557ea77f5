package main

import (
	"os"

	"github.com/perpetuallyhorni/fxthreads/tools/fxthreads/cmd"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd.SetVersion(version)
	if err := cmd.Execute(); err != nil {
		cmd.ReportError(err)
		os.Exit(1)
	}
}
