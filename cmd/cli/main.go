package main

import (
	"fmt"
	"os"

	"github.com/mkarlsen/relayd/cmd/cli/root"

	// Subcommands register themselves with the root command.
	_ "github.com/mkarlsen/relayd/cmd/cli/migrate"
	_ "github.com/mkarlsen/relayd/cmd/cli/monitor"
	_ "github.com/mkarlsen/relayd/cmd/cli/process"
	_ "github.com/mkarlsen/relayd/cmd/cli/schedules"
	_ "github.com/mkarlsen/relayd/cmd/cli/serve"
)

func main() {
	if err := root.GetRoot().Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
