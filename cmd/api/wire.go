package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mombo-site/mombo-api/internal/config"
	"github.com/mombo-site/mombo-api/internal/domain/analysis"
	"github.com/mombo-site/mombo-api/internal/domain/failures"
	"github.com/mombo-site/mombo-api/internal/domain/ingredient"
	"github.com/mombo-site/mombo-api/internal/domain/user"
	mysqlp "github.com/mombo-site/mombo-api/internal/infra/db/mysql"
	"github.com/mombo-site/mombo-api/internal/infra/db/postgres"
	"github.com/mombo-site/mombo-api/internal/infra/normalizer/correction"
	normopenai "github.com/mombo-site/mombo-api/internal/infra/normalizer/openai"
)

// stores bundles the repositories of one database driver.
type stores struct {
	db          *sql.DB
	ingredients ingredient.Repository
	results     analysis.Repository
	users       user.Store
	failures    failures.Repository
	migrate     func(context.Context, *sql.DB) error
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN(), cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		return &stores{
			db:          db,
			ingredients: postgres.NewIngredientRepository(db),
			results:     postgres.NewResultRepository(db),
			users:       postgres.NewUserRepository(db),
			failures:    postgres.NewFailureRepository(db),
			migrate:     postgres.Migrate,
		}, nil
	default:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN(), mysqlp.Pool{MaxOpenConns: cfg.Database.MaxOpenConns})
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		return &stores{
			db:          db,
			ingredients: mysqlp.NewIngredientRepository(db),
			results:     mysqlp.NewResultRepository(db),
			users:       mysqlp.NewUserRepository(db),
			failures:    mysqlp.NewFailureRepository(db),
			migrate:     mysqlp.Migrate,
		}, nil
	}
}

func newNormalizer(cfg *config.Config, logger *slog.Logger) analysis.Normalizer {
	n := cfg.Normalizer
	if n.Backend == "openai" {
		return normopenai.NewNormalizer(n.OpenAI.APIKey, n.OpenAI.BaseURL, n.OpenAI.Model, n.Timeout, logger)
	}
	return correction.NewClient(n.URL, n.Timeout, nil, logger)
}

func countPolicy(cfg *config.Config) analysis.CountPolicy {
	if cfg.CountAllLevels() {
		return analysis.CountAllLevels
	}
	return analysis.CountTrackedLevels
}
