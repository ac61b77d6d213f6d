package migrate

import (
	"github.com/spf13/cobra"

	"github.com/mkarlsen/relayd/cmd/cli/root"
	"github.com/mkarlsen/relayd/internal/config"
	"github.com/mkarlsen/relayd/internal/db"
)

func init() {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE:  runMigrate,
	}

	root.RootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	return db.Run(cfg.DatabaseURL())
}
