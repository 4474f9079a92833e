// commands/app.go
package commands

import (
	"context"
	"fmt"

	"promo-task-bot/config"
	"promo-task-bot/models"
	"promo-task-bot/services"
	"promo-task-bot/utils"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func serviceOptions(cfg config.Config) services.Options {
	return services.Options{
		DefaultPromoCoins: cfg.DefaultPromoCoins,
		CodeLength:        cfg.CodeLength,
		MembershipTimeout: cfg.MembershipCheckTimeout,
	}
}

// openServices connects, migrates and wires the engine without a
// membership checker; CLI commands never verify users.
func openServices(ctx context.Context, opts *rootOptions) (*services.Services, *gorm.DB, error) {
	db, err := openDB(opts.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := migrate(ctx, db); err != nil {
		return nil, nil, err
	}
	svc := services.New(db, nil, serviceOptions(opts.cfg), opts.log)
	if _, err := svc.Config.EnsureSettings(ctx); err != nil {
		return nil, nil, err
	}
	return svc, db, nil
}

func attachUploader(ctx context.Context, cfg config.Config, export *services.ExportService, log *zap.Logger) error {
	if !cfg.R2.Enabled() {
		log.Info("[R2] not configured, audit uploads disabled")
		return nil
	}
	up, err := utils.NewR2Uploader(ctx, utils.R2Settings{
		AccountID:       cfg.R2.AccountID,
		AccessKeyID:     cfg.R2.AccessKeyID,
		AccessKeySecret: cfg.R2.AccessKeySecret,
		Bucket:          cfg.R2.Bucket,
		CDNBaseURL:      cfg.R2.CDNBaseURL,
	})
	if err != nil {
		return err
	}
	export.Uploader = up
	return nil
}

func seedFromFile(ctx context.Context, admin *services.AdminService, path string) (int, error) {
	seed, err := config.LoadSeed(path)
	if err != nil {
		return 0, err
	}
	inputs := make([]services.RequirementInput, len(seed.Requirements))
	for i, r := range seed.Requirements {
		inputs[i] = services.RequirementInput{
			Kind: models.RequirementKind(r.Type),
			ID:   r.ID,
			Name: r.Name,
			URL:  r.URL,
		}
	}
	return admin.Seed(ctx, inputs, seed.PromoCoins)
}
