// Command switchyard is a thin CLI wrapper over the switchyard engine: it
// builds a Plan from link/restore requests, preflights it, applies it, and
// can roll a prior apply back. It contains no engine logic of its own,
// mirroring the cmd/oss-rebuild wrapper's role relative to pkg/rebuild.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "switchyard [subcommand]",
	Short: "Safe, reversible filesystem mutation for symlink-based path replacement",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
