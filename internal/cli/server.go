package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-mastery-service/internal/app"
	"quiz-mastery-service/internal/config"
	"quiz-mastery-service/internal/domain"
	"quiz-mastery-service/internal/infra/memory"
	"quiz-mastery-service/internal/infra/postgres"
	redisinfra "quiz-mastery-service/internal/infra/redis"
	transport "quiz-mastery-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

type quizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var (
		loader  quizLoader
		catalog app.CatalogStore
		ledger  app.LedgerStore
	)
	if cfg.Postgres.URL != "" {
		db := postgres.Open(cfg.Postgres.URL)
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := postgres.NewStore(db)
		loader, catalog, ledger = postgres.NewQuizLoader(pool), store, store
		log.Printf("using postgres storage")
	} else {
		cat, err := loadCatalog(cfg.Catalog.File)
		if err != nil {
			return err
		}
		store := memory.NewStore(cat)
		loader, catalog, ledger = store, store, store
		log.Printf("using in-memory storage with %d quizzes", len(cat.Quizzes))
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	lockTTL := config.TTLDuration(cfg.Lock.TTL, 10*time.Second)

	var (
		quizRepo app.QuizRepository
		locker   app.Locker
	)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
		locker = redisinfra.NewLocker(redisClient, lockTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		locker = memory.NewKeyLocker()
	}

	engine := app.NewEngine(quizRepo, catalog, ledger, locker, app.NewFeed(), settingsFromConfig(cfg))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(engine),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz mastery service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func settingsFromConfig(cfg config.Config) app.Settings {
	s := app.DefaultSettings()
	s.Rules.BaseAttempts = config.IntOr(cfg.Economy.BaseAttempts, s.Rules.BaseAttempts)
	s.Rules.ExtraAttemptCost = config.IntOr(cfg.Economy.ExtraAttemptCost, s.Rules.ExtraAttemptCost)
	s.RevisionSize = config.IntOr(cfg.Revision.Size, s.RevisionSize)
	s.RevisionTimeLimitMinutes = config.IntOr(cfg.Revision.TimeLimitMinutes, s.RevisionTimeLimitMinutes)
	s.RevisionPassingScore = config.IntOr(cfg.Revision.PassingScore, s.RevisionPassingScore)
	return s
}
