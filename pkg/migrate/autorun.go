package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/poolfund-backend/pkg/config"
	"github.com/angelmondragon/poolfund-backend/pkg/db"
	"github.com/angelmondragon/poolfund-backend/pkg/logger"
)

// RunOnBoot applies the embedded migrations at startup when running in dev
// with POOLFUND_AUTO_MIGRATE set. SQLite is skipped with a warning.
func RunOnBoot(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if err := CheckDriver(cfg.DB); err != nil {
		logg.Warn(logg.WithField(ctx, "driver", cfg.DB.Driver), "skipping boot migrations")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}
	fsys, err := Source("")
	if err != nil {
		return err
	}
	m, err := New(sqlDB, fsys, logg)
	if err != nil {
		return err
	}
	return m.Up(logg.WithField(ctx, "env", cfg.App.Env))
}
