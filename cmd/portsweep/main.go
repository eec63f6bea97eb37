// Command portsweep is a concurrent TCP port scanner with an HTTP API.
package main

import (
	"github.com/anstrom/portsweep/cmd/cli"
)

// Build information, set by ldflags:
//
//	-X main.version=1.2.0 -X main.commit=$(git rev-parse --short HEAD) -X main.buildTime=$(date -u +%FT%TZ)
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
