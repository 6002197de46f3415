// ABOUTME: Entry point for coven-link, the local client for remote coven agents
// ABOUTME: Runs turns over a resumable stream and serves local tools to the agent

package main

import (
	"os"

	"github.com/fatih/color"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                  _ _       _
  ___ _____   _____ _ __         | (_)_ __ | | __
 / __/ _ \ \ / / _ \ '_ \ _____  | | | '_ \| |/ /
| (_| (_) \ V /  __/ | | |_____| | | | | | |   <
 \___\___/ \_/ \___|_| |_|       |_|_|_| |_|_|\_\
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}
