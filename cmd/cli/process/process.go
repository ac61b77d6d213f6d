package process

import (
	"github.com/spf13/cobra"

	"github.com/mkarlsen/relayd/cmd/cli/root"
	"github.com/mkarlsen/relayd/internal/app"
)

func init() {
	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Run one dispatcher tick",
		Long:  "Evaluates every dispatch-eligible schedule once and submits execution tasks for those that are due. Meant to be invoked by an external periodic trigger.",
		RunE:  runProcess,
	}

	root.RootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = a.Dispatcher().Tick(ctx)
	return err
}
