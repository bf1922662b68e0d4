package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the backsim CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("backsim version %s\n", version)
		fmt.Println("A signal-driven trading strategy backtester")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
