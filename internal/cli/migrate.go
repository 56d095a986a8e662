package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dtroode/soldojo-ledger/database"
	"github.com/dtroode/soldojo-ledger/internal/config"
	"github.com/dtroode/soldojo-ledger/internal/logger"
	"github.com/dtroode/soldojo-ledger/internal/repository/sqlite"
)

// NewMigrateCommand applies pending schema migrations and exits.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)

			cfg, err := config.NewConfig()
			if err != nil {
				return out.Error(err)
			}

			log := logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())

			switch cfg.Database.Driver {
			case config.DriverSQLite:
				store, err := sqlite.Open(cfg.Database.SQLitePath, log)
				if err != nil {
					return out.Error(err)
				}
				if err := store.Close(); err != nil {
					return out.Error(err)
				}
			default:
				if err := database.Migrate(cmd.Context(), cfg.Database.DSN, log); err != nil {
					return out.Error(err)
				}
			}

			return out.Success(fmt.Sprintf("migrations applied (%s)", cfg.Database.Driver))
		},
	}
}
