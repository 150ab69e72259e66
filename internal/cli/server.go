package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jasa1aw/eduBack/internal/app"
	"github.com/jasa1aw/eduBack/internal/config"
	"github.com/jasa1aw/eduBack/internal/domain"
	"github.com/jasa1aw/eduBack/internal/infra/memory"
	"github.com/jasa1aw/eduBack/internal/infra/postgres"
	redisinfra "github.com/jasa1aw/eduBack/internal/infra/redis"
	"github.com/jasa1aw/eduBack/internal/notify"
	transport "github.com/jasa1aw/eduBack/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var store app.Store
	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bunDB := bun.NewDB(sqldb, pgdialect.New())
		defer bunDB.Close()
		store = postgres.NewStore(bunDB)

		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	} else {
		memStore := memory.NewStore()
		memStore.SeedTestContent(sampleContent())
		store = memStore
	}

	var loader memory.ContentLoader = storeLoader{store: store}
	if pool != nil {
		loader = postgres.NewTestContentLoader(pool)
	}

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	var content app.TestContentSource
	if redisClient != nil {
		content = redisinfra.NewTestCache(redisClient, loader, contentTTL)
	} else {
		content = memory.NewTestCache(loader, contentTTL)
	}

	var rooms app.RoomRegistry
	if redisClient != nil {
		rooms = redisinfra.NewRoomRegistry(redisClient, redisTTL)
	} else {
		rooms = memory.NewRoomRegistry()
	}

	attempts := app.NewAttemptService(store, notify.LogNotifier{})
	competitions := app.NewCompetitionService(store, content, rooms)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(competitions).ServeWS)
	transport.NewAPIHandler(attempts, competitions).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting assessment service on :%s", finalPort)
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

// storeLoader reads content straight from the store when no dedicated read
// path is configured.
type storeLoader struct {
	store app.Store
}

func (l storeLoader) LoadTestContent(ctx context.Context, testID string) (domain.TestContent, error) {
	test, err := l.store.GetTest(ctx, testID)
	if err != nil {
		return domain.TestContent{}, err
	}
	questions, err := l.store.GetQuestions(ctx, testID)
	if err != nil {
		return domain.TestContent{}, err
	}
	return domain.TestContent{Test: test, Questions: questions}, nil
}

// sampleContent seeds the in-memory store so the service is usable without a
// database.
func sampleContent() domain.TestContent {
	return domain.TestContent{
		Test: domain.Test{
			ID:          "test-1",
			CreatorID:   "teacher-1",
			Title:       "Geography warm-up",
			ShowAnswers: true,
		},
		Questions: []domain.Question{
			{
				ID:             "q1",
				TestID:         "test-1",
				Title:          "Which of these are EU capitals?",
				Type:           domain.MultipleChoice,
				Options:        []string{"Paris", "Oslo", "Vienna", "Zurich"},
				CorrectAnswers: []string{"Paris", "Vienna"},
				Weight:         2,
			},
			{
				ID:             "q2",
				TestID:         "test-1",
				Title:          "The Danube flows through Budapest.",
				Type:           domain.TrueFalse,
				Options:        []string{"true", "false"},
				CorrectAnswers: []string{"true"},
			},
			{
				ID:             "q3",
				TestID:         "test-1",
				Title:          "Name the capital of Portugal.",
				Type:           domain.ShortAnswer,
				CorrectAnswers: []string{"Lisbon", "Lisboa"},
			},
		},
	}
}
