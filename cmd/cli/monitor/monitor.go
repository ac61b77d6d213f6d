package monitor

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkarlsen/relayd/cmd/cli/root"
	"github.com/mkarlsen/relayd/internal/app"
)

func init() {
	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run one health sweep over the schedule fleet",
		Long:  "Reports failed, stuck, and stale schedules plus fleet summary counts. Read-only; meant to be invoked by an external periodic trigger.",
		RunE:  runMonitor,
	}

	root.RootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rep := a.Monitor().Sweep(ctx)
	if rep.CheckErrors > 0 {
		return fmt.Errorf("%d monitor checks did not run", rep.CheckErrors)
	}
	return nil
}
