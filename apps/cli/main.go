package main

import "github.com/quiverhq/quiver/apps/cli/cmd"

// Populated by the linker at release time.
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cmd.Execute(version, buildTime)
}
