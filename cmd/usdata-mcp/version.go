package main

import (
	"fmt"

	"github.com/spf13/cobra"

	usdata "github.com/usdatahub/usdata-mcp"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of usdata-mcp",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("usdata-mcp version %s\n", usdata.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
