// Command roadmap keeps a local SQLite replica of the remote roadmap change
// catalog and serves full-text search over it.
//
//	roadmap serve              # HTTP API, syncs at start when stale
//	roadmap sync               # one replication pass
//	roadmap search "teams" --ring preview --tag Web -o yaml
//	roadmap get 412718
//	roadmap vocab
//
// Configuration comes from the environment (see internal/config), optionally
// seeded from a .env file.
//
// @title        Roadmap Replica API
// @version      1.0
// @description  Local replica of a remote roadmap change catalog with full-text search.
// @BasePath     /api/v1
package main

import (
	"os"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
