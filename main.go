package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"token-claim-gate/config"
	"token-claim-gate/handlers"
	"token-claim-gate/services"
	"token-claim-gate/utils"
	"token-claim-gate/workers"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error("❌ "+msg, "error", err)
	os.Exit(1)
}

func openLedger(cfg config.Config, logger *slog.Logger) (services.Ledger, error) {
	if cfg.LedgerDriver == "memory" {
		logger.Warn("⚠️  Using in-memory ledger, claims are lost on restart")
		return services.NewMemoryLedger(), nil
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ledger := services.NewGormLedger(db, logger)
	if err := ledger.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return ledger, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal(slog.Default(), "invalid configuration", err)
	}
	logger := utils.NewLogger(cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := openLedger(cfg, logger)
	if err != nil {
		fatal(logger, "failed to open ledger", err)
	}

	allocation, err := decimal.NewFromString(cfg.AllocationAmount)
	if err != nil {
		fatal(logger, "invalid ALLOCATION_AMOUNT", err)
	}
	amount, err := services.ParseUnits(cfg.AllocationAmount, cfg.TokenDecimals)
	if err != nil {
		fatal(logger, "invalid ALLOCATION_AMOUNT", err)
	}
	maxFee, err := services.ParseUnits(cfg.MaxFeePerGasGwei, 9)
	if err != nil {
		fatal(logger, "invalid MAX_FEE_PER_GAS", err)
	}
	minBalance, err := services.ParseUnits(cfg.MinRecipientBalance, 0)
	if err != nil {
		fatal(logger, "invalid MIN_RECIPIENT_BALANCE_WEI", err)
	}

	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL())
	if err != nil {
		fatal(logger, "failed to connect to chain RPC", err)
	}
	defer rpc.Close()
	chain, err := services.NewEVMChain(ctx, rpc, cfg.VaultPrivateKey, cfg.Token(), maxFee)
	if err != nil {
		fatal(logger, "failed to initialize custody wallet", err)
	}
	disburser, err := services.NewDisburser(chain, amount, minBalance, logger)
	if err != nil {
		fatal(logger, "failed to initialize disburser", err)
	}

	httpClient := utils.NewUpstreamHTTPClient()
	airstack := services.NewAirstackClient(cfg.AirstackAPIURL, cfg.AirstackAPIKey, cfg.SkipCustodyAddress, httpClient, logger)
	recasts := services.NewHubClient("airstack-hub", cfg.AirstackHub, cfg.AirstackAPIKey, httpClient, logger)
	var follows services.FollowGraph = airstack
	if cfg.FollowProvider == "hub" {
		follows = services.NewHubClient("hub", cfg.HubURL, "", httpClient, logger)
	}

	policy := &services.Policy{
		Ledger:       ledger,
		Cooldown:     services.Window{Mode: services.WindowMode(cfg.CooldownMode), Days: cfg.CooldownDays, Location: time.UTC},
		Cap:          services.Window{Mode: services.WindowMode(cfg.CapMode), Days: cfg.CapDays, Location: time.UTC},
		MaxPerWindow: cfg.MaxClaimsPerWindow,
	}

	claimService := services.NewClaimService(
		services.NewSocialVerifier(follows, recasts, cfg.AuthorityFID, logger),
		services.NewWalletResolver(airstack, logger),
		ledger,
		policy,
		disburser,
		services.ClaimSettings{
			AuthorityID:     cfg.AuthorityFID,
			Token:           strings.ToLower(cfg.Token()),
			Amount:          amount.String(),
			FollowTimeout:   cfg.FollowTimeout,
			EndorseTimeout:  cfg.EndorseTimeout,
			WalletTimeout:   cfg.WalletTimeout,
			TransferTimeout: cfg.TransferTimeout,
		},
		logger,
	)

	reconciler := workers.NewReservationReconciler(ledger, cfg.ReconcileInterval, cfg.ReservationTTL, logger)
	go workers.PollReservations(ctx, reconciler, cfg.ReconcileInterval)

	if cfg.ArchiveEnabled() {
		store, err := utils.NewR2Store(ctx, cfg.CloudflareAccountID, cfg.R2AccessKeyID, cfg.R2AccessKeySecret, cfg.R2Bucket)
		if err != nil {
			fatal(logger, "failed to initialize R2 client", err)
		}
		sched, err := services.NewLedgerArchiver(ledger, store, logger).StartArchiveScheduler(ctx)
		if err != nil {
			fatal(logger, "failed to start archive scheduler", err)
		}
		defer func() { _ = sched.Shutdown() }()
		logger.Info("✅ Daily ledger archive scheduled", "bucket", cfg.R2Bucket)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 64 * 1024,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       86400,
	}))

	cards := handlers.NewCardRenderer(cfg.CDN, cfg.ProfileURL, cfg.InfoURL, utils.Explorer{BaseURL: cfg.Explorer()}, allocation, cfg.TokenSymbol)
	handlers.SetupClaimRoutes(app, claimService, cards, policy, handlers.RouteConfig{
		ServiceToken:   cfg.ServiceToken,
		MaxPerWindow:   cfg.MaxClaimsPerWindow,
		ClaimRateLimit: cfg.ClaimRateLimit,
	}, logger)

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Error("Server error", "error", err)
			stop()
		}
	}()

	logger.Info("✅ Server running", "addr", cfg.HTTPAddr, "testing", cfg.Testing)
	logger.Info("✅ Custody wallet ready", "custody", chain.Custody(), "token", cfg.Token())
	logger.Info("✅ Follow checks via " + cfg.FollowProvider)
	logger.Info("✅ Reservation reconciliation running", "interval", cfg.ReconcileInterval.String())

	<-ctx.Done()
	logger.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
}
