package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"golang-earnings-trader/internal/trader/broker"
	"golang-earnings-trader/internal/trader/config"
	"golang-earnings-trader/internal/trader/repository"
	"golang-earnings-trader/internal/trader/service"
	"golang-earnings-trader/pkg/common"
	"golang-earnings-trader/pkg/logger"
	"golang-earnings-trader/pkg/telegram"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the earnings trader",
	Run:   runServe,
}

var resetLogCmd = &cobra.Command{
	Use:   "reset-log",
	Short: "Clears the daily log file",
	Run:   runResetLog,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Earnings Trader",
		logger.Field("name", cfg.App.Name),
		logger.StringField("mode", cfg.Trading.Mode))

	// Initialize repositories
	positionsRepo := repository.NewPositionsRepository(cfg.Store.PositionsFile, appLogger)
	dailyLogRepo := repository.NewDailyLogRepository(cfg.Store.DailyLogFile, appLogger)
	earningsRepo := repository.NewEarningsRepository(&cfg.FMP, appLogger)
	marketDataRepo, err := repository.NewMarketDataRepository(&cfg.MarketData, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize market data repository", logger.ErrorField(err))
	}
	sectorRepo := repository.NewSectorRepository(&cfg.FMP, marketDataRepo, appLogger)

	// Initialize broker
	var orderBroker broker.Broker
	if cfg.Trading.Mode == common.ModeLive {
		orderBroker = broker.NewAlpacaBroker(&cfg.Alpaca, appLogger)
	} else {
		orderBroker = broker.NewPaperBroker(cfg.Store.TradesLogFile, appLogger)
	}

	// Initialize notifier
	var notifier telegram.Notifier = telegram.NoopNotifier{}
	if cfg.Telegram.BotToken != "" {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
	} else {
		appLogger.Warn("Telegram bot token not configured, alerts disabled")
	}

	// Initialize services
	executionSvc := service.NewExecutionService(cfg, appLogger, positionsRepo, orderBroker, notifier)
	cycleSvc := service.NewCycleService(cfg, appLogger, positionsRepo, dailyLogRepo, earningsRepo, marketDataRepo, sectorRepo, executionSvc)
	schedulerSvc := service.NewSchedulerService(cfg, appLogger, cycleSvc)

	// Start scheduler; blocks until shutdown signal
	if err := schedulerSvc.Start(ctx); err != nil {
		appLogger.Fatal("Scheduler failed", logger.ErrorField(err))
	}

	appLogger.Info("Trader exiting")
}

func runResetLog(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	dailyLogRepo := repository.NewDailyLogRepository(cfg.Store.DailyLogFile, appLogger)
	if err := dailyLogRepo.Reset(); err != nil {
		appLogger.Fatal("Failed to reset daily log", logger.ErrorField(err))
	}
	appLogger.Info("Daily log reset", logger.StringField("path", cfg.Store.DailyLogFile))
}

func main() {
	rootCmd := &cobra.Command{Use: "trader"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")
	resetLogCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(resetLogCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing trader CLI: %s\n", err)
		os.Exit(1)
	}
}
