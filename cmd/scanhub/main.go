// Command scanhub is the scan orchestration CLI.
package main

import (
	"github.com/scanhub/scanhub/cmd/cli"
)

// Build information - set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
