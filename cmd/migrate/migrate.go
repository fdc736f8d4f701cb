package migrate

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
)

// GetMigrateCmd builds the migrate subcommand for the clara schema
// under migrations/.
func GetMigrateCmd(dbURL string) *cobra.Command {
	var down bool
	var steps int

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Run: func(cmd *cobra.Command, args []string) {
			m, err := migrate.New("file://migrations", dbURL)
			if err != nil {
				log.Fatal("❌ Failed to initialize migrations:", err)
			}

			switch {
			case steps != 0:
				err = m.Steps(steps)
			case down:
				err = m.Down()
			default:
				err = m.Up()
			}

			if errors.Is(err, migrate.ErrNoChange) {
				fmt.Println("⚠️ Nothing to migrate.")
				return
			}
			if err != nil && down && strings.Contains(err.Error(), "dirty") {
				fmt.Println("⚠️ Database is in a dirty state. Forcing version fix...")
				if ferr := m.Force(0); ferr != nil {
					log.Fatal("❌ Failed to force version:", ferr)
				}
				err = m.Down()
				if errors.Is(err, migrate.ErrNoChange) {
					err = nil
				}
			}
			if err != nil {
				log.Fatal("❌ Migration failed:", err)
			}

			fmt.Println("✅ Migrations applied successfully!")
		},
	}

	migrateCmd.Flags().BoolVarP(&down, "down", "d", false, "Rollback migrations")
	migrateCmd.Flags().IntVar(&steps, "steps", 0, "Apply exactly n migrations (negative rolls back)")

	return migrateCmd
}
