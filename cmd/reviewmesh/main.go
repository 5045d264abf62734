// Reviewmesh runs multi-agent code review over unified diffs.
//
// Usage:
//
//	git diff | reviewmesh review -            # review one diff
//	ls *.patch | reviewmesh worker            # queue many diffs
//	reviewmesh preferences change.patch       # emit a preference pair
//	reviewmesh reviews list                   # browse a persistent store
package main

import (
	"os"

	"github.com/hupe1980/reviewmesh/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
