// Command eventqlnode runs a storage node: a metadata RPC server plus the
// cobra/viper-driven CLI scaffolding this cluster's other
// services use for their own binaries.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "eventqlnode",
		Short: "eventql storage node",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newBenchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
