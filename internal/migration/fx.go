package migration

import (
	"github.com/duniafantasy/fantasybox/internal/config"
	"github.com/duniafantasy/fantasybox/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		if cfg.DefaultTenantID != 0 {
			if err := seed.EnsureMainTenantWithID(conn, cfg.DefaultTenantID); err != nil {
				return err
			}
		} else {
			if err := seed.EnsureMainTenant(conn); err != nil {
				return err
			}
		}
		if cfg.SeedDemoData {
			return seed.EnsureDemoConfiguration(conn)
		}
		return nil
	}),
)
