package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-mastery-service/internal/catalog"
	"quiz-mastery-service/internal/config"
	"quiz-mastery-service/internal/infra/postgres"
	redisinfra "quiz-mastery-service/internal/infra/redis"
)

// NewSeedCmd loads a catalog file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert themes, quizzes, questions and users from a catalog file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog YAML (defaults to catalog.file, then the built-in sample)")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if file == "" {
		file = cfg.Catalog.File
	}
	cat, err := loadCatalog(file)
	if err != nil {
		return err
	}

	db := postgres.Open(cfg.Postgres.URL)
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	if err := postgres.Seed(ctx, db, cat); err != nil {
		return err
	}

	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()
	// Rows are committed; a stale cache only delays the new content until the TTL runs out.
	if err := evictSeededQuizzes(ctx, client, cat); err != nil {
		log.Printf("evict cached quizzes: %v", err)
	}
	return nil
}

// evictSeededQuizzes drops cached copies of every quiz in c so running servers reload them.
func evictSeededQuizzes(ctx context.Context, client *redis.Client, c catalog.Catalog) error {
	ids := make([]string, len(c.Quizzes))
	for i, q := range c.Quizzes {
		ids[i] = q.ID
	}
	if err := redisinfra.NewQuizRepository(client, nil, 0).Invalidate(ctx, ids...); err != nil {
		return err
	}
	log.Printf("evicted %d cached quizzes", len(ids))
	return nil
}

func loadCatalog(file string) (catalog.Catalog, error) {
	if file == "" {
		return catalog.Sample(), nil
	}
	return catalog.Load(file)
}
