package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/vitos/signal_trader/internal/config"
	"github.com/vitos/signal_trader/internal/infrastructure/exchange"
	"github.com/vitos/signal_trader/internal/infrastructure/extractor"
	"github.com/vitos/signal_trader/internal/infrastructure/logger"
	"github.com/vitos/signal_trader/internal/infrastructure/notify"
	"github.com/vitos/signal_trader/internal/infrastructure/policy"
	"github.com/vitos/signal_trader/internal/infrastructure/telegram"
	"github.com/vitos/signal_trader/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	log, err := newLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Init Notifier (operator bot)
	notifier, err := notify.NewTelegramNotifier(cfg.Bot.Token, cfg.Bot.ChatID, log)
	if err != nil {
		log.Fatal("Failed to init telegram bot", zap.Error(err))
	}

	// 4. Init Policy Store + Synchronizer
	store, err := policy.NewSQLiteStore(cfg.Policy.DBPath, cfg.Policy.UserID,
		time.Duration(cfg.Policy.PollMs)*time.Millisecond, log)
	if err != nil {
		log.Fatal("Failed to init policy store", zap.Error(err))
	}
	defer store.Close()

	policySync := usecase.NewPolicySynchronizer(store, log)
	policySync.Load(ctx)
	if err := policySync.Start(ctx); err != nil {
		log.Error("Failed to watch trading policy", zap.Error(err))
		notifier.SendErrorNotification(ctx, err.Error(), "Startup")
	}
	defer policySync.Stop()

	// 5. Init Exchange Accounts
	var accounts []usecase.RoutedAccount
	for _, acct := range cfg.DomainAccounts() {
		routed := usecase.RoutedAccount{Account: acct}
		if acct.HasCredentials() {
			client := exchange.NewBinanceClient(acct.APIKey, acct.Secret,
				cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint, log)
			if err := client.LoadMarkets(ctx); err != nil {
				log.Error("Failed to load markets, account disabled",
					zap.String("account", acct.ID), zap.Error(err))
				notifier.SendErrorNotification(ctx, err.Error(), "Startup")
			} else {
				routed.Client = client
				if len(cfg.Exchange.WatchSymbols) > 0 {
					go client.StreamMarkPrices(ctx, cfg.Exchange.WatchSymbols)
				}
				log.Info("Initialized exchange account", zap.String("account", acct.ID))
			}
		}
		accounts = append(accounts, routed)
	}

	// 6. Wire Pipeline
	router := usecase.NewAccountRouter(accounts, log)
	builder := usecase.NewOrderBuilder()
	coordinator := usecase.NewExecutionCoordinator(policySync, router, builder, store, notifier, log)
	signalExtractor := extractor.NewOpenAIExtractor(cfg.OpenAI.APIKey, cfg.OpenAI.Model, notifier, log)
	orchestrator := usecase.NewOrchestrator(signalExtractor, coordinator, notifier, log)

	// 7. Operator Commands
	defaultAccountID := ""
	if len(accounts) > 0 {
		defaultAccountID = accounts[0].Account.ID
	}
	accountService := usecase.NewAccountService(router, defaultAccountID, log)
	commands := notify.NewCommands(notifier, accountService, policySync, log)
	go commands.Run(ctx)

	// 8. Telegram Transport
	transport := telegram.NewClient(cfg.Telegram.AppID, cfg.Telegram.AppHash,
		cfg.Telegram.Phone, cfg.Telegram.SessionPath, cfg.Telegram.PeersPath,
		cfg.AllAllowedChatIDs(), log)
	transportDone := runTransport(ctx, transport, orchestrator.HandleMessage, log)

	if err := notifier.SendStartupNotification(ctx); err != nil {
		log.Error("Failed to send startup notification", zap.Error(err))
	}
	log.Info("Signal trader started", zap.Int("accounts", len(accounts)))

	// 9. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	// Unsubscribe the policy watch and disconnect the transport before
	// notifying and exiting.
	log.Info("Shutting down")
	cancel()
	policySync.Stop()

	select {
	case <-transportDone:
	case <-time.After(10 * time.Second):
		log.Error("Timed out waiting for telegram transport to stop")
	}

	if err := notifier.SendShutdownNotification(context.Background()); err != nil {
		log.Error("Failed to send shutdown notification", zap.Error(err))
	}
}

type messageTransport interface {
	Run(ctx context.Context, onMessage telegram.Handler) error
}

// runTransport keeps the transport connected until ctx is cancelled. The
// returned channel closes once the transport has fully stopped.
func runTransport(ctx context.Context, transport messageTransport, onMessage telegram.Handler, log *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			err := transport.Run(ctx, onMessage)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				log.Error("Telegram transport stopped, reconnecting", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}()
	return done
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Logging.File != "" {
		return logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	}
	return logger.NewLogger(cfg.Logging.Level)
}
