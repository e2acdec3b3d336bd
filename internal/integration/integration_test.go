package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"talent-exam-service/internal/app"
	"talent-exam-service/internal/domain"
	pgstore "talent-exam-service/internal/infra/postgres"
	pgmigrations "talent-exam-service/internal/infra/postgres/migrations"
	infraredis "talent-exam-service/internal/infra/redis"
)

type approvingGateway struct{}

func (approvingGateway) CreateOrder(_ context.Context, amount float64, reference string) (app.PaymentOrder, error) {
	return app.PaymentOrder{OrderID: "order-" + reference, SessionToken: "session-1"}, nil
}

func (approvingGateway) VerifyOrder(_ context.Context, orderID string) (string, error) {
	return "PAID", nil
}

func TestBookingLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateAndSeed(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	store := pgstore.NewStore(pool)
	loader := pgstore.NewQuestionLoader(pool)
	if err := store.PutContest(ctx, sampleContest()); err != nil {
		t.Fatalf("seed contest: %v", err)
	}
	for _, q := range sampleQuestions() {
		if err := loader.PutQuestion(ctx, q); err != nil {
			t.Fatalf("seed question %s: %v", q.ID, err)
		}
	}

	seats := infraredis.NewSeatCounter(redisClient)
	tokens := infraredis.NewTokenStore(redisClient)
	cache := infraredis.NewQuestionCache(redisClient, loader, 75*time.Minute)
	board := app.NewLeaderboardHub()

	registration := app.NewRegistrationService(store, store, seats)
	payments := app.NewPaymentService(store, store, seats, approvingGateway{})
	exams := app.NewExamService(store, cache, store, tokens, board)

	// Register up to capacity, then hit the ceiling.
	var bookings []domain.Booking
	for i := 0; i < 2; i++ {
		b, err := registration.Register(ctx, registrationRequest(i))
		if err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
		bookings = append(bookings, b)
	}
	if _, err := registration.Register(ctx, registrationRequest(2)); !errors.Is(err, domain.ErrSlotFull) {
		t.Fatalf("expected slot full at capacity, got %v", err)
	}

	// Same identity in another slot is still a duplicate.
	dup := registrationRequest(0)
	dup.SlotID = "Slot-2"
	if _, err := registration.Register(ctx, dup); !errors.Is(err, domain.ErrDuplicateRegistration) {
		t.Fatalf("expected duplicate registration, got %v", err)
	}

	// Pay for the first booking.
	order, err := payments.CreateOrder(ctx, bookings[0].ID)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	paid, err := payments.Confirm(ctx, bookings[0].ID, order.OrderID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !paid.IsPaid || paid.Status != domain.StatusPaid {
		t.Fatalf("expected paid booking, got %+v", paid)
	}

	// Submit: correct mcq +1, wrong mcq -0.33, correct numeric +2.
	one, zero := 1, 0
	answers := []domain.AnswerSubmission{
		{QuestionID: "tq1", SelectedOption: &one},
		{QuestionID: "tq2", SelectedOption: &zero},
		{QuestionID: "tq3", TextAnswer: " 29 "},
	}
	sub, already, err := exams.Submit(ctx, bookings[0].ID, answers)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if already {
		t.Fatalf("expected first submission")
	}
	if math.Abs(sub.TotalScore-2.67) > 1e-9 {
		t.Fatalf("expected score 2.67, got %v", sub.TotalScore)
	}

	// A second service instance against the same stores must see the
	// submission and refuse to rescore.
	exams2 := app.NewExamService(store, cache, store, tokens, app.NewLeaderboardHub())
	sub2, already, err := exams2.Submit(ctx, bookings[0].ID, []domain.AnswerSubmission{{QuestionID: "tq1", SelectedOption: &one}})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if !already || math.Abs(sub2.TotalScore-sub.TotalScore) > 1e-9 {
		t.Fatalf("expected first record back, got already=%v score=%v", already, sub2.TotalScore)
	}

	// Result token round trip, one-time.
	token, err := exams.IssueResultToken(ctx, bookings[0].ID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := exams2.Result(ctx, bookings[0].ID, token); err != nil {
		t.Fatalf("result: %v", err)
	}
	if _, err := exams.Result(ctx, bookings[0].ID, token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected token invalid on reuse, got %v", err)
	}

	// The unpaid second booking expires and its seat frees up.
	janitor := app.NewReservationJanitorWithClock(store, seats, 30*time.Minute, time.Minute, func() time.Time {
		return time.Now().Add(time.Hour)
	})
	janitor.Sweep(ctx)

	failed, err := store.GetBooking(ctx, bookings[1].ID)
	if err != nil {
		t.Fatalf("get swept booking: %v", err)
	}
	if failed.Status != domain.StatusFailed {
		t.Fatalf("expected failed booking after sweep, got %s", failed.Status)
	}
	if _, err := registration.Register(ctx, registrationRequest(3)); err != nil {
		t.Fatalf("register into freed seat: %v", err)
	}

	// The slot is full again, so a late payment on the swept booking must
	// not push it over capacity.
	lateOrder, err := payments.CreateOrder(ctx, bookings[1].ID)
	if err != nil {
		t.Fatalf("late create order: %v", err)
	}
	if _, err := payments.Confirm(ctx, bookings[1].ID, lateOrder.OrderID); !errors.Is(err, domain.ErrSlotFull) {
		t.Fatalf("expected slot full on late payment, got %v", err)
	}
}

func migrateAndSeed(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleContest() domain.Contest {
	now := time.Now()
	return domain.Contest{
		ID:         "contest-1",
		Title:      "Talent Search",
		StartDate:  now.AddDate(0, 0, -1),
		EndDate:    now.AddDate(0, 0, 30),
		EntryFee:   100,
		MaxPerSlot: 2,
		TotalSlots: 6,
		IsActive:   true,
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:        "tq1",
			ContestID: "contest-1",
			SlotID:    "Slot-1",
			Text:      map[string]string{"en": "Pick the right option"},
			Options: []domain.Option{
				{Text: map[string]string{"en": "Wrong"}},
				{Text: map[string]string{"en": "Right"}, Correct: true},
			},
			Type:  domain.QuestionMCQ,
			Marks: 1,
		},
		{
			ID:        "tq2",
			ContestID: "contest-1",
			SlotID:    "Slot-1",
			Text:      map[string]string{"en": "Pick another option"},
			Options: []domain.Option{
				{Text: map[string]string{"en": "Wrong"}},
				{Text: map[string]string{"en": "Right"}, Correct: true},
			},
			Type:  domain.QuestionMCQ,
			Marks: 1,
		},
		{
			ID:            "tq3",
			ContestID:     "contest-1",
			SlotID:        "Slot-1",
			Text:          map[string]string{"en": "How many days in a leap-year February?"},
			Type:          domain.QuestionNumeric,
			CorrectAnswer: "29",
			Marks:         2,
		},
	}
}

func registrationRequest(n int) app.RegistrationRequest {
	return app.RegistrationRequest{
		ContestID: "contest-1",
		SlotID:    "Slot-1",
		Name:      fmt.Sprintf("User %d", n),
		Email:     fmt.Sprintf("user%d@example.com", n),
		Phone:     fmt.Sprintf("9%09d", n),
		ExamDate:  "2025-03-10",
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "talent", "POSTGRES_PASSWORD": "talentpass", "POSTGRES_DB": "talentdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://talent:talentpass@%s:%s/talentdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
