package schedules

import (
	"github.com/spf13/cobra"

	"github.com/mkarlsen/relayd/cmd/cli/output"
	"github.com/mkarlsen/relayd/cmd/cli/root"
	"github.com/mkarlsen/relayd/internal/app"
	"github.com/mkarlsen/relayd/internal/monitor"
)

func init() {
	schedulesCmd := &cobra.Command{
		Use:   "schedules",
		Short: "List schedules with their execution state",
		RunE:  runList,
	}

	schedulesCmd.Flags().Int("limit", 50, "Maximum schedules to list")
	schedulesCmd.Flags().Int("offset", 0, "Listing offset for pagination")

	root.RootCmd.AddCommand(schedulesCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.Store.List(ctx, limit, offset)
	if err != nil {
		return err
	}

	now := a.Clock.Now()
	rows := make([][]interface{}, 0, len(list))
	for _, s := range list {
		expr := ""
		if s.CronExpr != nil {
			expr = *s.CronExpr
		}
		rows = append(rows, []interface{}{
			s.ID, s.Name, s.ScheduleType, s.Enabled, s.Status, expr,
			s.ExecutionCount, s.FailureCount,
			monitor.SinceString(s.LastExecutedAt, now),
		})
	}

	output.RenderTable(
		[]string{"ID", "Name", "Type", "Enabled", "Status", "Cron", "Runs", "Failures", "Last Run"},
		rows,
	)
	return nil
}
