package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exported RootCmd
var RootCmd = &cobra.Command{
	Use:   "relayd",
	Short: "Scheduled API integration runner",
	Long:  "relayd dispatches, executes, and monitors scheduled API integrations",
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// Optional helper to return the RootCmd
func GetRoot() *cobra.Command {
	return RootCmd
}
