// Package backendservice wires configuration, storage, the model gateway and
// the HTTP surface into a running server.
package backendservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskhive/taskhive-backend/internal/api"
	"github.com/taskhive/taskhive-backend/internal/auth"
	"github.com/taskhive/taskhive-backend/internal/config"
	"github.com/taskhive/taskhive-backend/internal/events"
	"github.com/taskhive/taskhive-backend/internal/health"
	"github.com/taskhive/taskhive-backend/internal/llm"
	"github.com/taskhive/taskhive-backend/internal/logger"
	"github.com/taskhive/taskhive-backend/internal/services"
	"github.com/taskhive/taskhive-backend/internal/store"
	"github.com/taskhive/taskhive-backend/internal/store/postgres"
	"github.com/taskhive/taskhive-backend/internal/store/sqlite"
	"github.com/taskhive/taskhive-backend/internal/tools"
)

const (
	healthProbeTimeout = 2 * time.Second
	healthInterval     = 15 * time.Second
)

// Run starts the taskhive backend HTTP server and blocks until shutdown or
// error.
func Run() error {
	log := logger.New("taskhive-backend")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := newStore(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Store adapter unavailable")
		return err
	}

	gateway := newGateway(cfg, log)

	var bus *events.Bus
	var publisher *events.WebhookPublisher
	if cfg.EventWebhookURL != "" {
		bus = events.NewBus(cfg.EventBufferSize, log)
		publisher = events.NewWebhookPublisher(bus, cfg.EventWebhookURL, log)
		publisher.Start(ctx)
		log.Info().Str("url", cfg.EventWebhookURL).Msg("event webhook publisher started")
	}

	taskSvc := services.NewTaskService(st, bus, log)
	convSvc := services.NewConversationService(st, bus, log)
	tagSvc := services.NewTagService(st)
	registry := tools.NewRegistry(taskSvc)
	chatSvc := services.NewChatService(st, gateway, registry,
		llm.NewTokenCounter(cfg.ModelName),
		services.ChatConfig{
			HistoryWindow:      cfg.HistoryWindow,
			HistoryTokenBudget: cfg.HistoryTokenBudget,
			TurnDeadline:       cfg.TurnDeadline(),
			ModelCallDeadline:  cfg.ModelCallDeadline(),
			MaxToolRounds:      cfg.MaxToolRounds,
		}, log)

	svcHealth := startHealthCheckers(ctx, log, st, gateway)

	router := api.NewRouter(api.Deps{
		Authorizer:    auth.NewStoreAuthorizer(st),
		Chat:          chatSvc,
		Conversations: convSvc,
		Tasks:         taskSvc,
		Tags:          tagSvc,
		Health:        svcHealth,
		Log:           log,
	})

	server := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * cfg.TurnDeadline(),
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		if bus != nil {
			bus.Close()
			publisher.Wait()
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}
}

func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		return postgres.New(cfg.PostgresDSN)
	case "sqlite":
		return sqlite.New(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}

// newGateway returns nil when no credential is configured; chat requests
// then fail with a clear error while the task surface keeps working.
func newGateway(cfg *config.Config, log zerolog.Logger) llm.Gateway {
	if cfg.ModelAPICredential == "" {
		log.Warn().Msg("MODEL_API_CREDENTIAL not set; chat endpoint disabled")
		return nil
	}
	return llm.NewOpenAIGateway(cfg.ModelAPICredential, cfg.ModelName, cfg.ModelBaseURL)
}

func startHealthCheckers(ctx context.Context, log zerolog.Logger, st store.Store, gateway llm.Gateway) *health.ServiceHealthChecker {
	var checkers []health.Checker

	storeChecker := store.NewStoreHealthChecker(st, log, healthProbeTimeout)
	go storeChecker.Start(ctx, healthInterval)
	checkers = append(checkers, storeChecker)

	if gw, ok := gateway.(health.Checker); ok && gw != nil {
		go gw.Start(ctx, healthInterval)
		checkers = append(checkers, gw)
	}

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, healthInterval)
	return svcHealth
}
