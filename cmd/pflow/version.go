package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lenML/pflow"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of pflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pflow version %s\n", strings.TrimSpace(pflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
