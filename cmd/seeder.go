package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/user-management/internal/user"
	"github.com/frahmantamala/user-management/pkg/logger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Create the default admin and user accounts when the users table is empty.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		setupLogger(cfg)
		lg := logger.L()

		db, err := initDB(cfg.Database, lg)
		if err != nil {
			return fmt.Errorf("failed to init db: %w", err)
		}
		defer db.Close()

		seeded, err := user.SeedDefaults(context.Background(), newUserService(cfg, db, lg))
		if err != nil {
			return err
		}
		if !seeded {
			fmt.Println("users already present; nothing seeded")
			return nil
		}
		fmt.Println("seeded default users")
		return nil
	},
}
