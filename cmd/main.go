package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pawn-ledger/internal/api"
	"pawn-ledger/internal/batch"
	"pawn-ledger/internal/config"
	"pawn-ledger/internal/domain/customer"
	"pawn-ledger/internal/domain/ledger"
	"pawn-ledger/internal/domain/loan"
	"pawn-ledger/internal/domain/user"
	"pawn-ledger/internal/event"
	"pawn-ledger/internal/infrastructure/cache"
	"pawn-ledger/internal/infrastructure/database/memory"
	"pawn-ledger/internal/infrastructure/database/postgres"
	"pawn-ledger/internal/infrastructure/logging"
	"pawn-ledger/internal/pkg/apperrors"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// @title Pawn Ledger API
// @version 1.0
// @description Ledger service for pawn loans: customers, pledged items, interest accrual and payments.
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT issued by /auth/login.
func main() {
	cfg, logger := initializeApp()

	repos, closeStorage := initializeStorage(cfg, logger)
	defer closeStorage()
	rabbitMQConn, err := setupRabbitMQ(cfg, logger)
	if err != nil {
		logger.Warn("Continuing without RabbitMQ, ledger events will be dropped.", slog.Any("error", err))
	}
	redisClient := initializeRedisClient(cfg, logger)
	deps, eventPublisher := initializeServices(cfg, repos, rabbitMQConn, redisClient, logger)

	seedDemoLedger(cfg, deps, logger)

	overdueJob := batch.NewUpdateOverdueJob(repos.loans, eventPublisher, cfg.Batch.OverdueAfterDays, logger)
	cronScheduler := startBatchJobs(cfg, logger, overdueJob)

	router := api.SetupRouter(deps, cfg, logger)
	metricsSrv := startMetricsServer(cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, metricsSrv, cronScheduler, rabbitMQConn, redisClient, shutdownChan, serverErrors, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "config_source", viper.ConfigFileUsed())

	if cfg.Server.Auth.Enabled && cfg.Server.Auth.JWTSecret == "" {
		logger.Error("server.auth.jwtSecret must be set while auth is enabled")
		os.Exit(1)
	}

	return cfg, logger
}

// storageBundle groups the repository implementations main hands to the
// services, regardless of which backend produced them. With PostgreSQL all
// fields point at per-table repositories sharing one pool; with the memory
// store every field is the same *memory.Store.
type storageBundle struct {
	loans     loan.Repository
	serials   loan.SerialSource
	loanCount customer.LoanCounter
	payments  ledger.PaymentRepository
	customers customer.CustomerRepository
	users     user.UserRepository
}

func initializeStorage(cfg *config.Config, logger *slog.Logger) (storageBundle, func()) {
	if cfg.Database.URL == "" {
		logger.Warn("database.url is empty, running on the in-memory store. All data is lost on exit.")
		store := memory.NewStore(cfg.Ledger.SerialSeed)
		return storageBundle{
			loans:     store,
			serials:   store,
			loanCount: store,
			payments:  store,
			customers: store,
			users:     store,
		}, func() {}
	}

	dbPool := initializeDatabase(cfg, logger)
	loanRepo := postgres.NewLoanRepository(dbPool, logger)
	seedSerialFloor(loanRepo, cfg.Ledger.SerialSeed, logger)

	return storageBundle{
		loans:     loanRepo,
		serials:   loanRepo,
		loanCount: loanRepo,
		payments:  postgres.NewPaymentRepository(dbPool, logger),
		customers: postgres.NewCustomerRepository(dbPool, logger),
		users:     postgres.NewUserRepository(dbPool, logger),
	}, func() { closeDatabase(dbPool, logger) }
}

func initializeDatabase(cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	logger.Info("Initializing database connection pool...")
	dbPool, err := postgres.NewConnectionPool(context.Background(), cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}

	if cfg.Database.RunMigrations {
		logger.Info("Applying database migrations...")
		if err := postgres.RunMigrations(cfg.Database.URL, logger); err != nil {
			logger.Error("Failed to apply database migrations", "error", err)
			dbPool.Close()
			os.Exit(1)
		}
	}
	return dbPool
}

func closeDatabase(dbPool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("Closing database connection pool...")
	dbPool.Close()
}

func initializeServices(cfg *config.Config, repos storageBundle, rabbitConn *amqp.Connection,
	redisClient *redis.Client, logger *slog.Logger) (api.Dependencies, event.EventPublisher) {
	logger.Info("Initializing application components...")

	eventPublisher := initializeEventPublisher(cfg, rabbitConn, logger)

	customerService := customer.NewCustomerService(repos.customers, repos.loanCount, eventPublisher, logger)
	allocator := loan.NewSerialAllocator(repos.serials, cfg.Ledger.SerialPrefix)
	loanService := loan.NewLoanService(repos.loans, allocator, customerService, eventPublisher, logger)

	var statsCache ledger.StatsCache
	if redisClient != nil {
		statsCache = cache.NewDashboardCache(redisClient, cfg.Ledger.DashboardCacheTTL, logger)
	}
	ledgerService := ledger.NewLedgerService(repos.loans, repos.payments, customerService, eventPublisher,
		statsCache, cfg.Ledger.DefaultAnnualRate, cfg.Ledger.DashboardFetchCap, logger)

	authService := user.NewAuthService(repos.users, cfg.Server.Auth, logger)

	deps := api.Dependencies{
		Loans:     loanService,
		Customers: customerService,
		Ledger:    ledgerService,
		Auth:      authService,
		Redis:     redisClient,
	}
	return deps, eventPublisher
}

func initializeEventPublisher(cfg *config.Config, rabbitConn *amqp.Connection, logger *slog.Logger) event.EventPublisher {
	if rabbitConn == nil {
		logger.Info("RabbitMQ not connected, ledger events will not be published.")
		return event.NewNoopEventPublisher(logger)
	}
	publisher, err := event.NewRabbitMQEventPublisher(rabbitConn, cfg.RabbitMQ.ExchangeName, logger)
	if err != nil {
		logger.Error("Failed to initialize RabbitMQ event publisher, falling back to no-op", slog.Any("error", err))
		return event.NewNoopEventPublisher(logger)
	}
	return publisher
}

// seedSerialFloor pushes the serial counter up to the configured seed. Books
// migrated from paper start above 1; the floor guarantees the first issued
// serial matches what the shop expects.
func seedSerialFloor(loanRepo *postgres.LoanRepository, floor int64, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := loanRepo.SeedSerialCounter(ctx, floor); err != nil {
		logger.Error("Failed to seed loan serial counter", "floor", floor, slog.Any("error", err))
		os.Exit(1)
	}
}

// seedDemoLedger loads the demo book through the real services so a fresh
// environment exercises the allocator, the payment engine and the dashboard
// end to end. It refuses to touch a ledger that already holds loans or
// customers, so a seed that was interrupted halfway is never stacked on.
func seedDemoLedger(cfg *config.Config, deps api.Dependencies, logger *slog.Logger) {
	if !cfg.Demo.Enabled {
		return
	}
	seedLogger := logger.With(slog.String("component", "DemoSeeder"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	existing, err := deps.Loans.ListLoans(ctx, loan.LoanFilter{Limit: 1})
	if err != nil {
		seedLogger.Error("Failed to inspect ledger before demo seed", slog.Any("error", err))
		return
	}
	if len(existing) > 0 {
		seedLogger.Info("Ledger already holds loans, skipping demo seed.")
		return
	}
	customers, err := deps.Customers.ListCustomers(ctx)
	if err != nil {
		seedLogger.Error("Failed to inspect customers before demo seed", slog.Any("error", err))
		return
	}
	if len(customers) > 0 {
		seedLogger.Info("Ledger already holds customers, skipping demo seed.")
		return
	}

	if _, err := deps.Auth.Register(ctx, "admin@vault.com", "password123", "Admin User"); err != nil &&
		!errors.Is(err, apperrors.ErrAlreadyExists) && !errors.Is(err, apperrors.ErrConflict) {
		seedLogger.Warn("Failed to register demo user", slog.Any("error", err))
	}

	demoCustomers := []struct {
		name, phone, address, idProof string
	}{
		{"Rajesh Kumar", "+91-9876543210", "123, MG Road, Bangalore, Karnataka - 560001", "AADHAR-123456789012"},
		{"Priya Sharma", "+91-9876543211", "456, Brigade Road, Bangalore, Karnataka - 560025", "PAN-ABCDE1234F"},
		{"Anil Patel", "+91-9876543212", "789, Commercial Street, Bangalore, Karnataka - 560001", "DL-KA0320230123456"},
	}

	customerIDs := make([]int64, 0, len(demoCustomers))
	for _, c := range demoCustomers {
		created, err := deps.Customers.CreateCustomer(ctx, c.name, c.phone, c.address, c.idProof)
		if err != nil {
			seedLogger.Error("Failed to create demo customer", "name", c.name, slog.Any("error", err))
			return
		}
		customerIDs = append(customerIDs, created.CustomerID)
	}

	// Percentage is percent fine, not karat: 22K gold is 91.67, 18K is 75.
	// Fine weights are left at zero and derived on creation.
	demoLoans := []loan.CreateLoanInput{
		{
			CustomerID:      customerIDs[0],
			PrincipalAmount: 50000,
			LoanDate:        time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
			Items: []loan.Item{
				{Quantity: 1, Name: "Gold Chain", Metal: "Gold", Weight: 25.5, Percentage: 91.67, Value: 55000},
			},
		},
		{
			CustomerID:      customerIDs[1],
			PrincipalAmount: 25000,
			LoanDate:        time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
			Items: []loan.Item{
				{Quantity: 2, Name: "Silver Bangles", Metal: "Silver", Weight: 45.0, Percentage: 92.5, Value: 30000},
			},
		},
		{
			CustomerID:      customerIDs[2],
			PrincipalAmount: 75000,
			LoanDate:        time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
			Items: []loan.Item{
				{Quantity: 1, Name: "Gold Ring", Metal: "Gold", Weight: 8.5, Percentage: 75.0, Value: 15000},
				{Quantity: 1, Name: "Gold Necklace", Metal: "Gold", Weight: 35.2, Percentage: 91.67, Value: 65000},
			},
		},
	}

	serials := make([]string, 0, len(demoLoans))
	for _, input := range demoLoans {
		created, err := deps.Loans.CreateLoan(ctx, input)
		if err != nil {
			seedLogger.Error("Failed to create demo loan", "customerID", input.CustomerID, slog.Any("error", err))
			return
		}
		serials = append(serials, created.SerialNo)
	}

	demoPayments := []ledger.PaymentRequest{
		{SerialNo: serials[0], Amount: 5000, Purpose: ledger.PurposeInterest,
			PaymentDate: time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC), Notes: "Partial payment"},
		{SerialNo: serials[1], Amount: 2500, Purpose: ledger.PurposeInterest,
			PaymentDate: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), Notes: "Monthly payment"},
	}
	for _, req := range demoPayments {
		if _, err := deps.Ledger.RecordPayment(ctx, req); err != nil {
			seedLogger.Error("Failed to record demo payment", "serialNo", req.SerialNo, slog.Any("error", err))
			return
		}
	}

	seedLogger.Info("Demo ledger seeded.",
		slog.Int("customers", len(customerIDs)), slog.Int("loans", len(serials)), slog.Int("payments", len(demoPayments)))
}

func startMetricsServer(cfg *config.Config, logger *slog.Logger) *http.Server {
	if cfg.Metrics.Port == 0 || cfg.Metrics.Port == cfg.Server.Port {
		return nil
	}
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}

	go func() {
		logger.Info("Metrics server listening", "port", cfg.Metrics.Port, "path", metricsPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", slog.Any("error", err))
		}
	}()
	return srv
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Server listening on port %d", cfg.Server.Port))
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

func handleShutdown(srv *http.Server, metricsSrv *http.Server, cronScheduler *cron.Cron, rabbitConn *amqp.Connection,
	redisClient *redis.Client, shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	triggerReason := waitForShutdownTrigger(shutdownChan, serverErrors, logger)

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	stopCronScheduler(cronScheduler, logger)
	closeRabbitMQConnection(rabbitConn, logger)
	closeRedisClient(redisClient, logger)
	shutdownMetricsServer(metricsSrv, logger)
	shutdownHTTPServer(srv, serverErrors, logger)

	logger.Info("Application shutdown process complete.")
}

func waitForShutdownTrigger(shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) string {
	select {
	case sig := <-shutdownChan:
		logger.Info("Shutdown signal received.", "signal", sig.String())
		return "signal: " + sig.String()
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			os.Exit(1)
		}
		logger.Info("Server goroutine finished before signal.", "error", err)
		return "server exited"
	}
}

func stopCronScheduler(cronScheduler *cron.Cron, logger *slog.Logger) {
	logger.Info("Stopping cron scheduler...")
	cronCtx := cronScheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(15 * time.Second):
		logger.Warn("Cron scheduler shutdown timed out.")
	}
}

func closeRabbitMQConnection(rabbitConn *amqp.Connection, logger *slog.Logger) {
	if rabbitConn != nil && !rabbitConn.IsClosed() {
		logger.Info("Closing RabbitMQ connection...")
		if err := rabbitConn.Close(); err != nil {
			logger.Error("Failed to close RabbitMQ connection gracefully", slog.Any("error", err))
		} else {
			logger.Info("RabbitMQ connection closed.")
		}
	} else if rabbitConn == nil {
		logger.Info("RabbitMQ connection was not established, skipping close.")
	} else {
		logger.Info("RabbitMQ connection already closed, skipping close.")
	}
}

func closeRedisClient(redisClient *redis.Client, logger *slog.Logger) {
	if redisClient == nil {
		logger.Info("Redis client was not initialized, skipping close.")
		return
	}
	logger.Info("Closing Redis client connection...")
	if err := redisClient.Close(); err != nil {
		logger.Error("Failed to close Redis client connection gracefully", "error", err)
	} else {
		logger.Info("Redis client connection closed.")
	}
}

func shutdownMetricsServer(metricsSrv *http.Server, logger *slog.Logger) {
	if metricsSrv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Metrics server shutdown failed", slog.Any("error", err))
	}
}

func shutdownHTTPServer(srv *http.Server, serverErrors <-chan error, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server graceful shutdown failed", "error", err)
		} else {
			logger.Info("HTTP server shutdown initiated.")
		}
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	logger.Info("Waiting for server goroutine to confirm exit...")
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		} else {
			logger.Info("Server goroutine confirmed exit.")
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}
}

func initializeRedisClient(cfg *config.Config, logger *slog.Logger) *redis.Client {
	if cfg.Redis.Addr == "" {
		logger.Info("Redis not configured; dashboard cache disabled and rate limiting is per-process.")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if status := rdb.Ping(ctx); status.Err() != nil {
		logger.Error("Failed to connect to Redis", "error", status.Err(), "addr", cfg.Redis.Addr)
		_ = rdb.Close()
		os.Exit(1)
		return nil
	}

	logger.Info("Redis client connected successfully.", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	return rdb
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, overdueJob *batch.UpdateOverdueJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.OverdueUpdateSchedule
	if scheduleSpec == "" {
		scheduleSpec = "0 2 * * *"
		logger.Warn("Batch overdue update schedule not configured, using default", "schedule", scheduleSpec)
	}
	// The config value is a bare number of seconds, not a duration string.
	jobTimeout := cfg.Batch.OverdueUpdateTimeout
	if jobTimeout <= 0 {
		jobTimeout = 1 * time.Hour
	} else {
		jobTimeout = jobTimeout * time.Second
	}

	jobID, err := c.AddJob(scheduleSpec, cron.FuncJob(func() {
		jobLogger := logger.With("job_name", "OverdueUpdate")
		jobLogger.Info("Cron triggered: Running overdue classification job.")

		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if runErr := overdueJob.Run(ctx); runErr != nil {
			jobLogger.Error("Overdue classification job finished with error", slog.Any("error", runErr))
		} else {
			jobLogger.Info("Overdue classification job finished successfully.")
		}
	}))

	if err != nil {
		logger.Error("Failed to schedule overdue classification job", "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled overdue classification job", "schedule", scheduleSpec, "job_id", jobID)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}

func setupLogger(cfg config.LoggerConfig) *slog.Logger {
	return logging.NewLogger(cfg)
}

func connectRabbitMQ(uri string, logger *slog.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	retryCount := 5
	for i := 1; i <= retryCount; i++ {
		conn, err = amqp.Dial(uri)
		if err == nil {
			logger.Info("Successfully connected to RabbitMQ")

			go func() {
				blockChan := conn.NotifyBlocked(make(chan amqp.Blocking))
				closeChan := conn.NotifyClose(make(chan *amqp.Error))

				select {
				case b := <-blockChan:
					logger.Warn("RabbitMQ Connection Blocked", "reason", b.Reason)
				case e := <-closeChan:
					logger.Error("RabbitMQ Connection Closed", slog.Any("error", e))
				}
			}()

			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ, retrying...",
			slog.Int("attempt", i),
			slog.Int("max_attempts", retryCount),
			slog.Any("error", err),
		)
		time.Sleep(time.Duration(i*2) * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", retryCount, err)
}

func setupRabbitMQ(cfg *config.Config, logger *slog.Logger) (*amqp.Connection, error) {
	if cfg.RabbitMQ.Host == "" {
		logger.Info("RabbitMQ host not configured, event publishing disabled.")
		return nil, nil
	}

	rabbitMQURI := fmt.Sprintf("amqp://%s:%d", cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)
	if cfg.RabbitMQ.Username != "" && cfg.RabbitMQ.Password != "" {
		rabbitMQURI = fmt.Sprintf("amqp://%s:%s@%s:%d", cfg.RabbitMQ.Username, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)
	} else if cfg.RabbitMQ.Username != "" || cfg.RabbitMQ.Password != "" {
		return nil, fmt.Errorf("RabbitMQ username and password must be provided together")
	}

	conn, err := connectRabbitMQ(rabbitMQURI, logger)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		return nil, err
	}
	return conn, nil
}
