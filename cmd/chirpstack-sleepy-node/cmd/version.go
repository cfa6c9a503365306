package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the ChirpStack Sleepy Node version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}
