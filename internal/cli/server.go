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
	"golang.org/x/sync/errgroup"
	"talent-exam-service/internal/app"
	"talent-exam-service/internal/config"
	"talent-exam-service/internal/domain"
	"talent-exam-service/internal/infra/memory"
	"talent-exam-service/internal/infra/payment"
	pgstore "talent-exam-service/internal/infra/postgres"
	infraredis "talent-exam-service/internal/infra/redis"
	transport "talent-exam-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the talent exam server",
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	// Stores: postgres when configured, otherwise the in-memory store seeded
	// with demo data.
	var (
		contests    app.ContestStore
		bookings    app.BookingStore
		submissions app.SubmissionStore
		loader      memory.QuestionLoader
	)
	if pool != nil {
		store := pgstore.NewStore(pool)
		contests, bookings, submissions = store, store, store
		loader = pgstore.NewQuestionLoader(pool)
	} else {
		mem := memory.NewRecordStore()
		seedDemoData(mem)
		contests, bookings, submissions = mem, mem, mem
		loader = mem
	}

	// Question cache: TTL must outlive the longest exam window.
	questionTTL := config.TTLDuration(cfg.Talent.QuestionTTL, 75*time.Minute)
	var questions app.QuestionRepository
	var invalidator *infraredis.QuestionInvalidator
	if redisClient != nil {
		cache := infraredis.NewQuestionCache(redisClient, loader, questionTTL)
		invalidator = infraredis.NewQuestionInvalidator(redisClient, cache)
		questions = cache
	} else {
		questions = memory.NewQuestionCache(loader, questionTTL)
	}

	var seats app.SeatCounter
	var tokens app.TokenStore
	if redisClient != nil {
		seats = infraredis.NewSeatCounter(redisClient)
		tokens = infraredis.NewTokenStore(redisClient)
	} else {
		seats = memory.NewSeatCounter()
		tokens = memory.NewTokenStore()
	}

	board := app.NewLeaderboardHub()
	registration := app.NewRegistrationService(contests, bookings, seats)
	eligibility := app.NewEligibilityService(bookings, config.TTLDuration(cfg.Talent.EarlyEntry, app.DefaultEarlyEntry))
	exams := app.NewExamService(bookings, questions, submissions, tokens, board)
	gateway := payment.NewClient(cfg.Payment.BaseURL, cfg.Payment.ClientID, cfg.Payment.ClientSecret)
	payments := app.NewPaymentService(contests, bookings, seats, gateway)
	janitor := app.NewReservationJanitor(bookings, seats,
		config.TTLDuration(cfg.Talent.ReservationTTL, 30*time.Minute),
		config.TTLDuration(cfg.Talent.JanitorInterval, time.Minute))

	handler := transport.NewHandler(registration, eligibility, exams, payments, questions, board)
	wsHandler := transport.NewWSHandler(board)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/leaderboard", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, runCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		log.Printf("starting talent exam service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := janitor.Run(runCtx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	})
	if invalidator != nil {
		g.Go(func() error {
			if err := invalidator.Run(runCtx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		})
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-runCtx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	err = server.Shutdown(shutdownCtx)
	cancel()
	if gErr := g.Wait(); gErr != nil && err == nil {
		err = gErr
	}
	return err
}

// seedDemoData loads a minimal contest so the service is usable without
// postgres; swap in the real store for production.
func seedDemoData(store *memory.RecordStore) {
	now := time.Now()
	store.PutContest(domain.Contest{
		ID:          "contest-1",
		Title:       "Talent Search Demo",
		StartDate:   now.AddDate(0, 0, -1),
		EndDate:     now.AddDate(0, 0, 30),
		EntryFee:    100,
		MaxPerSlot:  500,
		TotalSlots:  6,
		DurationMin: 60,
		IsActive:    true,
	})
	store.PutQuestions("contest-1", "Slot-1", []domain.Question{
		{
			ID:        "q1",
			ContestID: "contest-1",
			SlotID:    "Slot-1",
			Text:      map[string]string{"en": "What is 2 + 2?"},
			Options: []domain.Option{
				{Text: map[string]string{"en": "3"}},
				{Text: map[string]string{"en": "4"}, Correct: true},
				{Text: map[string]string{"en": "5"}},
			},
			Type:  domain.QuestionMCQ,
			Marks: 1,
		},
		{
			ID:            "q2",
			ContestID:     "contest-1",
			SlotID:        "Slot-1",
			Text:          map[string]string{"en": "How many days are in a leap-year February?"},
			Type:          domain.QuestionNumeric,
			CorrectAnswer: "29",
			Marks:         2,
		},
	})
}
